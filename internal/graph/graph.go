// Package graph expands a requested task's dependency tree into a
// topologically ordered set of GraphNodes, generalizing the teacher's
// internal/engine adjacency-list Graph from step-ID identity to
// (task_name, bound_args) identity.
package graph

import (
	"sort"

	"github.com/tasktree-dev/tasktree/internal/recipe"
)

// Node is one (task_name, bound_args) pair produced by expansion. Two
// DepInvocations of the same task with different bound arguments are
// distinct Nodes (spec.md §3).
type Node struct {
	ID         string
	Task       *recipe.Task
	Args       map[string]string
	Runner     string // resolved runner name for this node, never empty
	WorkingDir string // task.WorkingDir after template expansion
	seq        int    // insertion order, used only to break topo-sort ties

	EffectiveInputs []recipe.IOEntry // declared inputs + direct deps' outputs

	DependsOn  []*Node // direct dependencies, in declaration order
	Dependents []*Node
}

// Graph is the expanded, deduplicated node set for one requested task.
type Graph struct {
	Nodes map[string]*Node
	Order []*Node // topological order, ties broken by insertion order
}

func newGraph() *Graph {
	return &Graph{Nodes: map[string]*Node{}}
}

// topologicalSort computes g.Order via Kahn's algorithm, the same
// shape as the teacher's engine.Graph.TopologicalSort, with ties
// broken by each node's insertion sequence rather than a string sort
// (node IDs carry no natural ordering once arg bindings are baked in).
func (g *Graph) topologicalSort() error {
	indegree := make(map[string]int, len(g.Nodes))
	for id := range g.Nodes {
		indegree[id] = 0
	}
	for _, n := range g.Nodes {
		indegree[n.ID] += len(n.DependsOn)
	}

	ready := func() []*Node {
		var out []*Node
		for _, n := range g.Nodes {
			if indegree[n.ID] == 0 {
				out = append(out, n)
			}
		}
		return out
	}

	bySeq := func(ns []*Node) {
		sort.Slice(ns, func(i, j int) bool { return ns[i].seq < ns[j].seq })
	}

	pending := map[string]bool{}
	for id := range g.Nodes {
		pending[id] = true
	}

	queue := ready()
	bySeq(queue)
	for _, n := range queue {
		delete(pending, n.ID)
	}

	var order []*Node
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		var freed []*Node
		for _, dep := range n.Dependents {
			indegree[dep.ID]--
			if indegree[dep.ID] == 0 {
				freed = append(freed, dep)
				delete(pending, dep.ID)
			}
		}
		bySeq(freed)
		queue = append(queue, freed...)
	}

	if len(order) != len(g.Nodes) {
		return cycleAmong(pending)
	}

	g.Order = order
	return nil
}
