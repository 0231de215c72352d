package freshness

import (
	"github.com/tasktree-dev/tasktree/internal/graph"
	"github.com/tasktree-dev/tasktree/internal/logger"
	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
)

// Result is one node's freshness classification, with the hashes that
// key its state entry and the input set expanded while classifying.
// The Execution Driver does not read ExpandedInputs: it expands the
// inputs again after a node has run, before writing the state entry.
type Result struct {
	Node           *graph.Node
	DefHash        DefinitionHash
	ArgHash        ArgBindingHash
	Stale          bool
	Reason         string
	ExpandedInputs map[string]int64 // path -> mtime_ns, computed regardless of staleness
}

// ClassifyOptions carries the CLI-level force/only flags (spec.md
// §4.4 steps 7).
type ClassifyOptions struct {
	Force bool
	// Only, when non-empty, names one node ID that is always
	// force-marked stale. Every other node is classified as usual;
	// the graph itself is not restricted to that node.
	Only string
}

// ClassifyAll walks g.Order and classifies every node, in topological
// order, so that a dependency's classification is always available
// before its dependents are classified (spec.md §4.4's cascade rule).
func ClassifyAll(g *graph.Graph, rec *recipe.Recipe, state *State, fs platform.FileSystem, env platform.Environment, clock platform.Clock, log *logger.Logger, opts ClassifyOptions) []*Result {
	results := make([]*Result, 0, len(g.Order))
	staleByID := make(map[string]bool, len(g.Order))

	for _, n := range g.Order {
		r := classifyOne(n, rec, state, fs, env, clock, log, opts, staleByID)
		staleByID[n.ID] = r.Stale
		results = append(results, r)
	}
	return results
}

func classifyOne(n *graph.Node, rec *recipe.Recipe, state *State, fs platform.FileSystem, env platform.Environment, clock platform.Clock, log *logger.Logger, opts ClassifyOptions, staleByID map[string]bool) *Result {
	defHash := nodeDefinitionHash(n, rec)
	argHash := ArgBindingHashOf(n.Args)

	r := &Result{Node: n, DefHash: defHash, ArgHash: argHash}

	entry := state.Get(defHash, argHash)
	if entry == nil {
		r.Stale = true
		r.Reason = "no prior state entry"
	}

	if !r.Stale && len(n.EffectiveInputs) == 0 && len(n.Task.Outputs) == 0 {
		r.Stale = true
		r.Reason = "task declares neither inputs nor outputs"
	}

	expanded := graph.ExpandEffectiveInputs(n, rec, env, clock, fs, log)
	r.ExpandedInputs = expanded

	if !r.Stale && entry != nil && inputsChanged(expanded, entry.Inputs) {
		r.Stale = true
		r.Reason = "input contents changed since last run"
	}

	if !r.Stale {
		for _, dep := range n.DependsOn {
			if staleByID[dep.ID] {
				r.Stale = true
				r.Reason = "direct dependency executed in this invocation"
				break
			}
		}
	}

	if opts.Force || (opts.Only != "" && opts.Only == n.ID) {
		r.Stale = true
		if r.Reason == "" {
			r.Reason = "forced"
		}
	}

	return r
}

// inputsChanged reports whether the current expanded input set
// differs from the stored one, either in membership or by an input
// whose mtime is newer than the stored one (an older mtime does not
// count), per spec.md §4.4 step 5.
func inputsChanged(current map[string]int64, stored map[string]int64) bool {
	if len(current) != len(stored) {
		return true
	}
	for path, mtime := range current {
		prior, ok := stored[path]
		if !ok || mtime > prior {
			return true
		}
	}
	return false
}

// StaleNodeIDs extracts the IDs of every stale result, in the same
// order ClassifyAll returned them (i.e. topological).
func StaleNodeIDs(results []*Result) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		if r.Stale {
			ids = append(ids, r.Node.ID)
		}
	}
	return ids
}
