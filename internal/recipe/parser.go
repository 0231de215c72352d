package recipe

import (
	"context"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tasktree-dev/tasktree/internal/platform"
	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

// ParseOptions configures a single ParseRecipe call.
type ParseOptions struct {
	// ReadOnly gates eval-kind variables: true for inspection paths
	// (list/show/tree) that must never spawn a subprocess, mirroring
	// the way the teacher's CLI never calls Apply during `streamy
	// verify`.
	ReadOnly bool
}

// ParseRecipe discovers, loads, and fully resolves the recipe rooted
// at startDir: YAML parsing, import resolution and namespacing,
// variable resolution, and struct-tag validation (spec.md §4.1). The
// returned Recipe is immutable and ready for the graph builder.
//
// fs and spawner back the `read:`/`eval:` variable kinds, routed
// through the same platform.FileSystem/platform.ProcessSpawner
// collaborator interfaces the rest of the core uses, so both kinds
// are fakeable in tests instead of reaching for os.ReadFile/exec.Command.
func ParseRecipe(ctx context.Context, fs platform.FileSystem, env platform.Environment, spawner platform.ProcessSpawner, startDir string, opts ParseOptions) (*Recipe, error) {
	path, projectRoot, err := Discover(fsGlobStat{fs}, startDir)
	if err != nil {
		return nil, err
	}

	l := &loader{fs: fs, env: env, spawner: spawner, readOnly: opts.ReadOnly}
	chain := newImportChain()
	if err := chain.push(path); err != nil {
		return nil, err
	}

	recipe, err := l.loadFile(ctx, path, chain)
	if err != nil {
		return nil, err
	}
	recipe.ProjectRoot = projectRoot

	return recipe, nil
}

// ParseRecipeFile loads and fully resolves the recipe at an explicit
// path, bypassing Discover -- used by `tt run --file` and friends
// when the caller already knows which document to load.
func ParseRecipeFile(ctx context.Context, fs platform.FileSystem, env platform.Environment, spawner platform.ProcessSpawner, path string, opts ParseOptions) (*Recipe, error) {
	l := &loader{fs: fs, env: env, spawner: spawner, readOnly: opts.ReadOnly}
	chain := newImportChain()
	if err := chain.push(path); err != nil {
		return nil, err
	}

	recipe, err := l.loadFile(ctx, path, chain)
	if err != nil {
		return nil, err
	}
	recipe.ProjectRoot = filepath.Dir(path)

	return recipe, nil
}

// loader carries the collaborators threaded through every recursive
// loadFile call, the same way engine.ExecutionContext threads a
// logger and context.Context through the teacher's step execution
// instead of reaching for globals.
type loader struct {
	fs       platform.FileSystem
	env      platform.Environment
	spawner  platform.ProcessSpawner
	readOnly bool
}

func (l *loader) loadFile(ctx context.Context, path string, chain *importChain) (*Recipe, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, tterrors.NewValidationError("SchemaViolation", path, "failed to read recipe file", tterrors.Location{File: path}, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, tterrors.NewValidationError("SchemaViolation", path, "failed to parse recipe YAML", tterrors.Location{File: path}, err)
	}

	recipeDir := filepath.Dir(path)

	recipe := &Recipe{
		Tasks:     NewOrderedMap[*Task](),
		Runners:   map[string]*Runner{},
		RecipeDir: recipeDir,
		Default:   doc.Default,
	}

	for name, node := range doc.Runners {
		r, err := decodeRunner(name, node)
		if err != nil {
			return nil, tterrors.NewValidationError("SchemaViolation", name, err.Error(), tterrors.Location{File: path, Line: node.Line}, err)
		}
		recipe.Runners[name] = r
	}

	for _, name := range doc.taskOrder {
		node := doc.Tasks[name]
		t, err := decodeTask(name, node)
		if err != nil {
			return nil, tterrors.NewValidationError("SchemaViolation", name, err.Error(), tterrors.Location{File: path, Line: node.Line}, err)
		}
		t.SourceFile = path
		if err := validateTask(t); err != nil {
			return nil, err
		}
		recipe.Tasks.Set(name, t)
	}

	vars, err := resolveVariables(ctx, doc.Variables, recipeDir, l.fs, l.env, l.spawner, l.readOnly)
	if err != nil {
		return nil, err
	}
	recipe.Variables = vars

	if err := resolveImports(ctx, l, doc.Imports, recipeDir, chain, recipe); err != nil {
		return nil, err
	}

	return recipe, nil
}

func validateTask(t *Task) error {
	if err := validatorInstance().Var(t.Name, "task_id"); err != nil {
		return tterrors.NewValidationError("InvalidTaskName", t.Name, "task names must match [a-zA-Z_][a-zA-Z0-9_-]*", tterrors.Location{File: t.SourceFile, Line: t.SourceLine}, err)
	}

	for _, a := range t.Args {
		if !a.TypeSet {
			continue
		}
		if err := validatorInstance().Var(string(a.Type), "arg_type"); err != nil {
			return tterrors.NewValidationError("InvalidArgSpec", a.Name, "unknown argument type "+string(a.Type), tterrors.Location{File: t.SourceFile, Line: t.SourceLine}, err)
		}
	}

	return nil
}

// fsGlobStat adapts a platform.FileSystem to discovery's narrower
// FileGlobStat interface.
type fsGlobStat struct {
	fs platform.FileSystem
}

func (a fsGlobStat) IsFile(path string) bool {
	info, err := a.fs.Stat(path)
	return err == nil && !info.IsDir()
}

func (a fsGlobStat) Glob(pattern string) ([]string, error) {
	return a.fs.Glob(pattern)
}
