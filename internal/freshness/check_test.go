package freshness

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tasktree-dev/tasktree/internal/graph"
	"github.com/tasktree-dev/tasktree/internal/logger"
	"github.com/tasktree-dev/tasktree/internal/recipe"
)

type fakeFileInfo struct {
	name    string
	modTime time.Time
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return 0 }
func (f fakeFileInfo) Mode() os.FileMode  { return 0 }
func (f fakeFileInfo) ModTime() time.Time { return f.modTime }
func (f fakeFileInfo) IsDir() bool        { return false }
func (f fakeFileInfo) Sys() any           { return nil }

// fakeFS is a minimal in-memory platform.FileSystem double: each
// glob pattern maps directly to the set of paths it "matches", with
// each path carrying its own mtime.
type fakeFS struct {
	globs  map[string][]string
	mtimes map[string]time.Time
}

func (f fakeFS) ReadFile(path string) ([]byte, error)                { return nil, os.ErrNotExist }
func (f fakeFS) WriteFile(path string, data []byte, perm os.FileMode) error { return nil }
func (f fakeFS) Stat(path string) (os.FileInfo, error) {
	return fakeFileInfo{name: path, modTime: f.mtimes[path]}, nil
}
func (f fakeFS) Glob(pattern string) ([]string, error) { return f.globs[pattern], nil }
func (f fakeFS) MkdirAll(path string, perm os.FileMode) error { return nil }
func (f fakeFS) Rename(oldpath, newpath string) error         { return nil }
func (f fakeFS) Remove(path string) error                     { return nil }

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

func discardLogger() *logger.Logger {
	l, err := logger.New(logger.Options{Writer: os.Stderr, Level: "error"})
	if err != nil {
		panic(err)
	}
	return l
}

func buildNode(name string, inputs, outputs []recipe.IOEntry, workingDir string) *graph.Node {
	task := &recipe.Task{Name: name, Inputs: inputs, Outputs: outputs, WorkingDir: workingDir}
	return &graph.Node{ID: name, Task: task, Args: map[string]string{}, WorkingDir: workingDir, EffectiveInputs: inputs}
}

func testGraph(nodes ...*graph.Node) *graph.Graph {
	g := &graph.Graph{Nodes: map[string]*graph.Node{}}
	for _, n := range nodes {
		g.Nodes[n.ID] = n
		g.Order = append(g.Order, n)
	}
	return g
}

func testRecipe(tasks ...*recipe.Task) *recipe.Recipe {
	rec := &recipe.Recipe{
		Tasks:     recipe.NewOrderedMap[*recipe.Task](),
		Runners:   map[string]*recipe.Runner{},
		Variables: recipe.NewOrderedMap[string](),
	}
	for _, t := range tasks {
		rec.Tasks.Set(t.Name, t)
	}
	return rec
}

func testEnv() fakeEnv { return fakeEnv{vars: map[string]string{}} }

func TestClassifyMissingEntryIsStale(t *testing.T) {
	t.Parallel()

	n := buildNode("build", []recipe.IOEntry{{Name: "src", Glob: "*.go"}}, []recipe.IOEntry{{Name: "bin", Glob: "out"}}, "/proj")
	g := testGraph(n)
	rec := testRecipe(n.Task)
	state, err := LoadState(fakeFS{}, "/proj/.tasktree-state")
	require.NoError(t, err)

	fs := fakeFS{globs: map[string][]string{"/proj/*.go": {"/proj/a.go"}}, mtimes: map[string]time.Time{"/proj/a.go": time.Now()}}

	results := ClassifyAll(g, rec, state, fs, testEnv(), fakeClock{time.Now()}, discardLogger(), ClassifyOptions{})
	require.Len(t, results, 1)
	require.True(t, results[0].Stale)
	require.Equal(t, "no prior state entry", results[0].Reason)
}

func TestClassifyTrivialNoInputsNoOutputsAlwaysStale(t *testing.T) {
	t.Parallel()

	n := buildNode("noop", nil, nil, "/proj")
	g := testGraph(n)
	rec := testRecipe(n.Task)
	state, _ := LoadState(fakeFS{}, "/proj/.tasktree-state")
	state.Put(nodeDefinitionHash(n, rec), ArgBindingHashOf(n.Args), 1, map[string]int64{})

	results := ClassifyAll(g, rec, state, fakeFS{}, testEnv(), fakeClock{time.Now()}, discardLogger(), ClassifyOptions{})
	require.True(t, results[0].Stale)
	require.Equal(t, "task declares neither inputs nor outputs", results[0].Reason)
}

func TestClassifyFreshWhenInputsUnchanged(t *testing.T) {
	t.Parallel()

	n := buildNode("build", []recipe.IOEntry{{Name: "src", Glob: "*.go"}}, []recipe.IOEntry{{Name: "bin", Glob: "out"}}, "/proj")
	g := testGraph(n)
	rec := testRecipe(n.Task)

	mtime := time.Unix(1000, 0)
	fs := fakeFS{globs: map[string][]string{"/proj/*.go": {"/proj/a.go"}}, mtimes: map[string]time.Time{"/proj/a.go": mtime}}

	state, _ := LoadState(fakeFS{}, "/proj/.tasktree-state")
	defHash := nodeDefinitionHash(n, rec)
	argHash := ArgBindingHashOf(n.Args)
	state.Put(defHash, argHash, 500, map[string]int64{"/proj/a.go": mtime.UnixNano()})

	results := ClassifyAll(g, rec, state, fs, testEnv(), fakeClock{time.Now()}, discardLogger(), ClassifyOptions{})
	require.False(t, results[0].Stale)
}

func TestClassifyStaleWhenInputMtimeAdvances(t *testing.T) {
	t.Parallel()

	n := buildNode("build", []recipe.IOEntry{{Name: "src", Glob: "*.go"}}, []recipe.IOEntry{{Name: "bin", Glob: "out"}}, "/proj")
	g := testGraph(n)
	rec := testRecipe(n.Task)

	older := time.Unix(1000, 0)
	newer := time.Unix(2000, 0)
	fs := fakeFS{globs: map[string][]string{"/proj/*.go": {"/proj/a.go"}}, mtimes: map[string]time.Time{"/proj/a.go": newer}}

	state, _ := LoadState(fakeFS{}, "/proj/.tasktree-state")
	defHash := nodeDefinitionHash(n, rec)
	argHash := ArgBindingHashOf(n.Args)
	state.Put(defHash, argHash, 500, map[string]int64{"/proj/a.go": older.UnixNano()})

	results := ClassifyAll(g, rec, state, fs, testEnv(), fakeClock{time.Now()}, discardLogger(), ClassifyOptions{})
	require.True(t, results[0].Stale)
	require.Equal(t, "input contents changed since last run", results[0].Reason)
}

func TestClassifyCascadesFromStaleDependency(t *testing.T) {
	t.Parallel()

	dep := buildNode("compile", []recipe.IOEntry{{Name: "src", Glob: "*.c"}}, []recipe.IOEntry{{Name: "bin", Glob: "out.bin"}}, "/proj")
	top := buildNode("package", []recipe.IOEntry{{Name: "bin", Glob: "out.bin"}}, []recipe.IOEntry{{Name: "zip", Glob: "out.zip"}}, "/proj")
	top.DependsOn = []*graph.Node{dep}
	dep.Dependents = []*graph.Node{top}

	g := &graph.Graph{Nodes: map[string]*graph.Node{dep.ID: dep, top.ID: top}, Order: []*graph.Node{dep, top}}
	rec := testRecipe(dep.Task, top.Task)
	state, _ := LoadState(fakeFS{}, "/proj/.tasktree-state")

	mtime := time.Unix(1000, 0)
	fs := fakeFS{
		globs:  map[string][]string{"/proj/*.c": {"/proj/a.c"}, "/proj/out.bin": {"/proj/out.bin"}},
		mtimes: map[string]time.Time{"/proj/a.c": mtime, "/proj/out.bin": mtime},
	}

	topDefHash := nodeDefinitionHash(top, rec)
	topArgHash := ArgBindingHashOf(top.Args)
	state.Put(topDefHash, topArgHash, 500, map[string]int64{"/proj/out.bin": mtime.UnixNano()})

	results := ClassifyAll(g, rec, state, fs, testEnv(), fakeClock{time.Now()}, discardLogger(), ClassifyOptions{})
	require.True(t, results[0].Stale, "compile has no prior state entry so it is stale")
	require.True(t, results[1].Stale, "package must cascade from compile's staleness")
	require.Equal(t, "direct dependency executed in this invocation", results[1].Reason)
}

func TestClassifyForceMarksRequestedNodeStale(t *testing.T) {
	t.Parallel()

	n := buildNode("build", []recipe.IOEntry{{Name: "src", Glob: "*.go"}}, []recipe.IOEntry{{Name: "bin", Glob: "out"}}, "/proj")
	g := testGraph(n)
	rec := testRecipe(n.Task)

	mtime := time.Unix(1000, 0)
	fs := fakeFS{globs: map[string][]string{"/proj/*.go": {"/proj/a.go"}}, mtimes: map[string]time.Time{"/proj/a.go": mtime}}
	state, _ := LoadState(fakeFS{}, "/proj/.tasktree-state")
	state.Put(nodeDefinitionHash(n, rec), ArgBindingHashOf(n.Args), 500, map[string]int64{"/proj/a.go": mtime.UnixNano()})

	results := ClassifyAll(g, rec, state, fs, testEnv(), fakeClock{time.Now()}, discardLogger(), ClassifyOptions{Force: true})
	require.True(t, results[0].Stale)
}
