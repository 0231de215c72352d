package recipe

import (
	"context"
	"path/filepath"
	"strings"

	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

// importChain tracks the files currently being loaded, so a cycle
// (A imports B imports A) can be reported with the full trace rather
// than overflowing the call stack (spec.md §8, "ImportCycle").
type importChain struct {
	paths []string
	seen  map[string]bool
}

func newImportChain() *importChain {
	return &importChain{seen: map[string]bool{}}
}

func (c *importChain) push(path string) error {
	if c.seen[path] {
		return tterrors.NewGraphError("ImportCycle", path, "import cycle: "+strings.Join(append(c.paths, path), " -> "), nil)
	}
	c.paths = append(c.paths, path)
	c.seen[path] = true
	return nil
}

func (c *importChain) pop() {
	last := c.paths[len(c.paths)-1]
	c.paths = c.paths[:len(c.paths)-1]
	delete(c.seen, last)
}

// resolveImports loads each of decls' files through the same pipeline
// used for the top-level recipe, namespaces their tasks and runners as
// "as.name" (spec.md §4.1), and merges them into dst. run_in, if set,
// overrides the runner of every imported task that does not set
// pin_runner.
func resolveImports(ctx context.Context, l *loader, decls []importDecl, importingDir string, chain *importChain, dst *Recipe) error {
	for _, imp := range decls {
		if imp.As == "" {
			return tterrors.NewValidationError("SchemaViolation", imp.File, "import entry must set 'as'", tterrors.Location{}, nil)
		}

		path := imp.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(importingDir, path)
		}

		if err := chain.push(path); err != nil {
			return err
		}

		child, err := l.loadFile(ctx, path, chain)
		if err != nil {
			chain.pop()
			return err
		}
		chain.pop()

		if err := mergeNamespaced(dst, child, imp.As, imp.RunIn); err != nil {
			return err
		}
	}
	return nil
}

func mergeNamespaced(dst *Recipe, child *Recipe, ns string, runIn string) error {
	for _, name := range child.Tasks.Keys() {
		t, _ := child.Tasks.Get(name)
		qualified := ns + "." + name
		if _, exists := dst.Tasks.Get(qualified); exists {
			return tterrors.NewValidationError("DuplicateTaskName", qualified, "task name collides across imports", tterrors.Location{}, nil)
		}

		nt := *t
		nt.Name = qualified
		nt.Deps = qualifyDeps(t.Deps, ns)
		if !nt.PinRunner && runIn != "" {
			nt.RunIn = runIn
		}
		if nt.Runner != "" {
			nt.Runner = qualifyRunnerRef(nt.Runner, child.Runners, ns)
		}
		dst.Tasks.Set(qualified, &nt)
	}

	for name, r := range child.Runners {
		qualified := ns + "." + name
		if _, exists := dst.Runners[qualified]; exists {
			return tterrors.NewValidationError("DuplicateTaskName", qualified, "runner name collides across imports", tterrors.Location{}, nil)
		}
		nr := *r
		nr.Name = qualified
		dst.Runners[qualified] = &nr
	}

	return nil
}

// qualifyDeps rewrites a dep's TaskName to the importing namespace
// when it refers to a task declared inside the same imported recipe,
// so an imported recipe's internal dependencies keep resolving after
// namespacing.
func qualifyDeps(deps []DepInvocation, ns string) []DepInvocation {
	out := make([]DepInvocation, len(deps))
	for i, d := range deps {
		nd := d
		nd.TaskName = ns + "." + d.TaskName
		out[i] = nd
	}
	return out
}

func qualifyRunnerRef(name string, childRunners map[string]*Runner, ns string) string {
	if _, ok := childRunners[name]; ok {
		return ns + "." + name
	}
	return name
}
