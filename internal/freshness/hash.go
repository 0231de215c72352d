// Package freshness computes per-node definition hashes, compares
// them against persisted state, and classifies GraphNodes as fresh or
// stale (spec.md §4.4).
package freshness

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sort"

	"github.com/tasktree-dev/tasktree/internal/graph"
	"github.com/tasktree-dev/tasktree/internal/recipe"
)

// DefinitionHash identifies a task's declarative shape, independent
// of its name, description, inputs, or deps (spec.md §3's GraphNode
// invariant).
type DefinitionHash string

// ArgBindingHash identifies one node's bound argument values.
type ArgBindingHash string

// writer accumulates length-prefixed fields the way
// samgonzalezalberto-script-weaver's computeTaskDefHash does, so two
// fields that happen to concatenate to the same bytes (e.g. "ab"+"c"
// vs "a"+"bc") never collide.
type writer struct {
	h hash.Hash
}

func newWriter() *writer {
	return &writer{h: sha256.New()}
}

func (w *writer) field(data []byte) {
	n := uint64(len(data))
	lengthBytes := []byte{
		byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
		byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n),
	}
	w.h.Write(lengthBytes)
	w.h.Write(data)
}

func (w *writer) string(s string) { w.field([]byte(s)) }

func (w *writer) sum() string {
	return hex.EncodeToString(w.h.Sum(nil))
}

// DefinitionHashOf hashes exactly the fields spec.md §3 names: cmd,
// the canonical outputs list, the canonical args spec list,
// working_dir, and the resolved runner's own definition hash. Task
// name, description, inputs, and deps are deliberately excluded.
func DefinitionHashOf(task *recipe.Task, runner *recipe.Runner) DefinitionHash {
	w := newWriter()

	w.string(task.Cmd)

	outputs := canonicalIOEntries(task.Outputs)
	w.field([]byte{byte(len(outputs))})
	for _, o := range outputs {
		w.string(o.Name)
		w.string(o.Glob)
	}

	args := canonicalArgSpecs(task.Args)
	w.field([]byte{byte(len(args))})
	for _, a := range args {
		w.string(a)
	}

	w.string(task.WorkingDir)
	w.string(string(RunnerDefinitionHash(runner)))

	return DefinitionHash(w.sum())
}

// RunnerDefinitionHash hashes the fields of a Runner that affect how
// a task actually runs. A nil runner (the platform-default sentinel
// that has no Runner entry) hashes to a fixed empty-runner marker.
func RunnerDefinitionHash(r *recipe.Runner) DefinitionHash {
	w := newWriter()
	if r == nil {
		w.string("platform-default")
		return DefinitionHash(w.sum())
	}

	w.string(string(r.Kind))
	switch r.Kind {
	case recipe.RunnerShell:
		if r.Shell != nil {
			w.string(r.Shell.Shell)
			w.string(r.Shell.Preamble)
		}
	case recipe.RunnerContainer:
		if r.Container != nil {
			w.string(r.Container.Dockerfile)
			w.string(r.Container.Context)
			w.field(sortedJoined(r.Container.Volumes))
			w.field(sortedMapJoined(r.Container.BuildArgs))
			w.string(r.Container.WorkingDir)
			if r.Container.RunAsRoot {
				w.string("root")
			} else {
				w.string("non-root")
			}
		}
	}
	return DefinitionHash(w.sum())
}

// ArgBindingHashOf hashes a node's bound argument values, sorted by
// name for stability.
func ArgBindingHashOf(args map[string]string) ArgBindingHash {
	w := newWriter()

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w.field([]byte{byte(len(keys))})
	for _, k := range keys {
		w.string(k)
		w.string(args[k])
	}
	return ArgBindingHash(w.sum())
}

func canonicalIOEntries(entries []recipe.IOEntry) []recipe.IOEntry {
	out := make([]recipe.IOEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Glob < out[j].Glob
	})
	return out
}

func canonicalArgSpecs(specs []*recipe.ArgSpec) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		def := ""
		if s.Default != nil {
			def = *s.Default
		}
		out = append(out, s.Name+"\x00"+string(s.Type)+"\x00"+def)
	}
	sort.Strings(out)
	return out
}

func sortedJoined(items []string) []byte {
	cp := make([]string, len(items))
	copy(cp, items)
	sort.Strings(cp)
	out := make([]byte, 0)
	for _, s := range cp {
		out = append(out, byte(len(s)))
		out = append(out, []byte(s)...)
	}
	return out
}

func sortedMapJoined(m map[string]string) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]byte, 0)
	for _, k := range keys {
		out = append(out, byte(len(k)))
		out = append(out, []byte(k)...)
		v := m[k]
		out = append(out, byte(len(v)))
		out = append(out, []byte(v)...)
	}
	return out
}

// nodeDefinitionHash is the convenience entrypoint the freshness
// checker uses per graph.Node.
func nodeDefinitionHash(n *graph.Node, rec *recipe.Recipe) DefinitionHash {
	runner := rec.Runners[n.Runner]
	return DefinitionHashOf(n.Task, runner)
}
