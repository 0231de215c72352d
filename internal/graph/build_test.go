package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tasktree-dev/tasktree/internal/recipe"
)

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

type fakeEnv struct{ vars map[string]string }

func (f fakeEnv) Getenv(key string) (string, bool) { v, ok := f.vars[key]; return v, ok }
func (f fakeEnv) Environ() []string {
	out := make([]string, 0, len(f.vars))
	for k, v := range f.vars {
		out = append(out, k+"="+v)
	}
	return out
}

func newTestRecipe() *recipe.Recipe {
	rec := &recipe.Recipe{
		Tasks:     recipe.NewOrderedMap[*recipe.Task](),
		Runners:   map[string]*recipe.Runner{},
		Variables: recipe.NewOrderedMap[string](),
		RecipeDir: "/proj",
	}
	rec.Variables.Set("target", "x86")

	compile := &recipe.Task{
		Name:    "compile",
		Cmd:     "cc -o {{ self.outputs.bin }} {{ self.inputs.src }}",
		Inputs:  []recipe.IOEntry{{Name: "src", Glob: "*.c"}},
		Outputs: []recipe.IOEntry{{Name: "bin", Glob: "out.bin"}},
		Args: []*recipe.ArgSpec{
			{Name: "arch", Type: recipe.ArgTypeStr, Default: strPtr("x86")},
		},
	}
	pack := &recipe.Task{
		Name: "package",
		Cmd:  "zip out.zip {{ dep.compile.outputs.bin }}",
		Deps: []recipe.DepInvocation{
			{TaskName: "compile", Mode: recipe.DepDefaults},
		},
	}

	rec.Tasks.Set("compile", compile)
	rec.Tasks.Set("package", pack)
	return rec
}

func strPtr(s string) *string { return &s }

func TestBuildExpandsDependenciesAndOrdersTopologically(t *testing.T) {
	t.Parallel()

	rec := newTestRecipe()
	g, err := Build(rec, "package", recipe.DepInvocation{Mode: recipe.DepDefaults}, fakeClock{time.Now()}, fakeEnv{vars: map[string]string{}}, BuildOptions{})
	require.NoError(t, err)
	require.Len(t, g.Order, 2)
	require.Equal(t, "compile", g.Order[0].Task.Name)
	require.Equal(t, "package", g.Order[1].Task.Name)
}

func TestBuildInheritsDirectDependencyOutputsAsInputs(t *testing.T) {
	t.Parallel()

	rec := newTestRecipe()
	g, err := Build(rec, "package", recipe.DepInvocation{Mode: recipe.DepDefaults}, fakeClock{time.Now()}, fakeEnv{vars: map[string]string{}}, BuildOptions{})
	require.NoError(t, err)

	var pkgNode *Node
	for _, n := range g.Order {
		if n.Task.Name == "package" {
			pkgNode = n
		}
	}
	require.NotNil(t, pkgNode)
	require.Contains(t, pkgNode.EffectiveInputs, recipe.IOEntry{Name: "bin", Glob: "out.bin"})
}

func TestBuildDetectsCycle(t *testing.T) {
	t.Parallel()

	rec := &recipe.Recipe{
		Tasks:     recipe.NewOrderedMap[*recipe.Task](),
		Variables: recipe.NewOrderedMap[string](),
	}
	rec.Tasks.Set("a", &recipe.Task{Name: "a", Deps: []recipe.DepInvocation{{TaskName: "b", Mode: recipe.DepDefaults}}})
	rec.Tasks.Set("b", &recipe.Task{Name: "b", Deps: []recipe.DepInvocation{{TaskName: "a", Mode: recipe.DepDefaults}}})

	_, err := Build(rec, "a", recipe.DepInvocation{Mode: recipe.DepDefaults}, fakeClock{time.Now()}, fakeEnv{vars: map[string]string{}}, BuildOptions{})
	require.Error(t, err)
}

func TestBuildUnknownTask(t *testing.T) {
	t.Parallel()

	rec := &recipe.Recipe{Tasks: recipe.NewOrderedMap[*recipe.Task](), Variables: recipe.NewOrderedMap[string]()}
	_, err := Build(rec, "missing", recipe.DepInvocation{Mode: recipe.DepDefaults}, fakeClock{time.Now()}, fakeEnv{vars: map[string]string{}}, BuildOptions{})
	require.Error(t, err)
}

func TestBuildNamedArgBindingValidatesChoices(t *testing.T) {
	t.Parallel()

	rec := &recipe.Recipe{Tasks: recipe.NewOrderedMap[*recipe.Task](), Variables: recipe.NewOrderedMap[string]()}
	rec.Tasks.Set("deploy", &recipe.Task{
		Name: "deploy",
		Args: []*recipe.ArgSpec{{Name: "env", Type: recipe.ArgTypeStr, Choices: []string{"staging", "prod"}}},
	})
	rec.Tasks.Set("release", &recipe.Task{
		Name: "release",
		Deps: []recipe.DepInvocation{{TaskName: "deploy", Mode: recipe.DepNamed, Named: map[string]string{"env": "qa"}}},
	})

	_, err := Build(rec, "release", recipe.DepInvocation{Mode: recipe.DepDefaults}, fakeClock{time.Now()}, fakeEnv{vars: map[string]string{}}, BuildOptions{})
	require.Error(t, err)
}
