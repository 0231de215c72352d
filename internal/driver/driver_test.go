package driver

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tasktree-dev/tasktree/internal/freshness"
	"github.com/tasktree-dev/tasktree/internal/graph"
	"github.com/tasktree-dev/tasktree/internal/recipe"
)

type fakeFileInfo struct {
	name    string
	modTime time.Time
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return 0 }
func (f fakeFileInfo) Mode() os.FileMode  { return 0o644 }
func (f fakeFileInfo) ModTime() time.Time { return f.modTime }
func (f fakeFileInfo) IsDir() bool        { return false }
func (f fakeFileInfo) Sys() any           { return nil }

type fakeFS struct {
	files  map[string][]byte
	mtimes map[string]time.Time
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: map[string][]byte{}, mtimes: map[string]time.Time{}}
}

func (f *fakeFS) ReadFile(path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func (f *fakeFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	f.files[path] = data
	f.mtimes[path] = time.Now()
	return nil
}

func (f *fakeFS) Stat(path string) (os.FileInfo, error) {
	if _, ok := f.files[path]; !ok {
		return nil, os.ErrNotExist
	}
	return fakeFileInfo{name: path, modTime: f.mtimes[path]}, nil
}

func (f *fakeFS) Glob(pattern string) ([]string, error) {
	var out []string
	for p := range f.files {
		if p == pattern {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeFS) MkdirAll(path string, perm os.FileMode) error { return nil }

func (f *fakeFS) Rename(oldpath, newpath string) error {
	f.files[newpath] = f.files[oldpath]
	delete(f.files, oldpath)
	return nil
}

func (f *fakeFS) Remove(path string) error {
	delete(f.files, path)
	return nil
}

type fakeEnv struct{ vars map[string]string }

func (f fakeEnv) Getenv(key string) (string, bool) { v, ok := f.vars[key]; return v, ok }
func (f fakeEnv) Environ() []string {
	out := make([]string, 0, len(f.vars))
	for k, v := range f.vars {
		out = append(out, k+"="+v)
	}
	return out
}

func TestComposeEnvIncludesCallChainAndStatePath(t *testing.T) {
	t.Parallel()

	task := &recipe.Task{Name: "build", Args: []*recipe.ArgSpec{{Name: "mode", Exported: true}}}
	n := &graph.Node{ID: "build", Task: task, Args: map[string]string{"mode": "release"}}

	env := fakeEnv{vars: map[string]string{"PATH": "/bin"}}
	out, err := composeEnv(env, n, nil, false, []string{"build"}, "/proj/.tasktree-state")
	require.NoError(t, err)
	require.Contains(t, out, "TT_CALL_CHAIN=build")
	require.Contains(t, out, "TT_STATE_FILE_PATH=/proj/.tasktree-state")
	require.Contains(t, out, "mode=release")
}

func TestPruneStateRemovesStaleDefinitionHashes(t *testing.T) {
	t.Parallel()

	rec := &recipe.Recipe{Tasks: recipe.NewOrderedMap[*recipe.Task](), Runners: map[string]*recipe.Runner{}, Variables: recipe.NewOrderedMap[string]()}
	task := &recipe.Task{Name: "build", Cmd: "echo hi"}
	rec.Tasks.Set("build", task)

	fs := newFakeFS()
	state, err := freshness.LoadState(fs, "/proj/.tasktree-state")
	require.NoError(t, err)

	staleHash := freshness.DefinitionHash("stale-hash-that-no-task-produces")
	state.Put(staleHash, freshness.ArgBindingHash(""), 1, map[string]int64{})

	require.NoError(t, pruneState(state, rec))
	require.Nil(t, state.Get(staleHash, ""))
}

func TestBuildExecScopeResolvesDepReferences(t *testing.T) {
	t.Parallel()

	rec := &recipe.Recipe{Tasks: recipe.NewOrderedMap[*recipe.Task](), Runners: map[string]*recipe.Runner{}, Variables: recipe.NewOrderedMap[string]()}

	compile := &graph.Node{
		ID:   "compile",
		Task: &recipe.Task{Name: "compile", Outputs: []recipe.IOEntry{{Name: "bin", Glob: "out.bin"}}},
		Args: map[string]string{},
	}
	pkg := &graph.Node{
		ID:   "package",
		Task: &recipe.Task{Name: "package", Cmd: "zip {{ dep.compile.outputs.bin }}"},
		Args: map[string]string{},
		DependsOn: []*graph.Node{compile},
	}

	depOutputs := map[string]map[string]string{"compile": {"bin": "out.bin"}}

	scope, _, _, err := buildExecScope(pkg, rec, depOutputs, fakeEnv{vars: map[string]string{}}, time.Unix(0, 0))
	require.NoError(t, err)

	cmd, err := resolveCmd(pkg.Task, scope)
	require.NoError(t, err)
	require.Equal(t, "zip out.bin", cmd)
}

func TestResolveNestingPolicySameContainerRunsDirectly(t *testing.T) {
	t.Parallel()

	runner := &recipe.Runner{Name: "build-image", Kind: recipe.RunnerContainer, Container: &recipe.ContainerRunner{Dockerfile: "Dockerfile"}}

	effective, runInContainer, err := resolveNestingPolicy("build-image", runner, "build-image", true)
	require.NoError(t, err)
	require.False(t, runInContainer)
	require.Equal(t, recipe.RunnerShell, effective.Kind)
}

func TestResolveNestingPolicyDifferentContainerFails(t *testing.T) {
	t.Parallel()

	runner := &recipe.Runner{Name: "other-image", Kind: recipe.RunnerContainer, Container: &recipe.ContainerRunner{Dockerfile: "Dockerfile"}}

	_, _, err := resolveNestingPolicy("other-image", runner, "build-image", true)
	require.Error(t, err)
}

func TestTargetsReservedPathRejectsCollision(t *testing.T) {
	t.Parallel()

	require.True(t, targetsReservedPath("/host/state.json:"+reservedStatePath))
	require.False(t, targetsReservedPath("/host/data:/data"))
}
