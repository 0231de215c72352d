package graph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tasktree-dev/tasktree/internal/logger"
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

// realGlobFS is a FileSystem double that glob-expands with
// filepath.Match against a fixed file set, unlike a map keyed by the
// literal pattern string -- the shape needed to prove a wildcard
// pattern is actually expanded rather than stat'd as a literal path.
type realGlobFS struct {
	mtimes map[string]time.Time
}

func (f realGlobFS) ReadFile(path string) ([]byte, error) { return nil, os.ErrNotExist }
func (f realGlobFS) WriteFile(path string, data []byte, perm os.FileMode) error { return nil }
func (f realGlobFS) Stat(path string) (os.FileInfo, error) {
	mtime, ok := f.mtimes[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return fakeFileInfo{name: path, modTime: mtime}, nil
}
func (f realGlobFS) Glob(pattern string) ([]string, error) {
	var out []string
	for path := range f.mtimes {
		ok, err := filepath.Match(pattern, path)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, path)
		}
	}
	return out, nil
}
func (f realGlobFS) MkdirAll(path string, perm os.FileMode) error { return nil }
func (f realGlobFS) Rename(oldpath, newpath string) error         { return nil }
func (f realGlobFS) Remove(path string) error                     { return nil }

func discardLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(logger.Options{Writer: os.Stderr, Level: "error"})
	require.NoError(t, err)
	return l
}

func TestExpandEffectiveInputsExpandsRealWildcard(t *testing.T) {
	t.Parallel()

	rec := &recipe.Recipe{
		Tasks:     recipe.NewOrderedMap[*recipe.Task](),
		Runners:   map[string]*recipe.Runner{},
		Variables: recipe.NewOrderedMap[string](),
	}

	task := &recipe.Task{Name: "build", Inputs: []recipe.IOEntry{{Name: "src", Glob: "src/*.go"}}}
	n := &Node{ID: "build", Task: task, Args: map[string]string{}, WorkingDir: "/proj", EffectiveInputs: task.Inputs}

	mtime := time.Unix(1000, 0)
	fs := realGlobFS{mtimes: map[string]time.Time{
		"/proj/src/a.go": mtime,
		"/proj/src/b.go": mtime,
	}}

	out := ExpandEffectiveInputs(n, rec, fakeEnv{vars: map[string]string{}}, fakeClock{time.Now()}, fs, discardLogger(t))
	require.Len(t, out, 2, "a real wildcard glob with no templating should expand to every matching file, not an empty set")
	require.Contains(t, out, "/proj/src/a.go")
	require.Contains(t, out, "/proj/src/b.go")
}

func TestExpandEffectiveInputsResolvesVarTemplateBeforeGlobbing(t *testing.T) {
	t.Parallel()

	rec := &recipe.Recipe{
		Tasks:     recipe.NewOrderedMap[*recipe.Task](),
		Runners:   map[string]*recipe.Runner{},
		Variables: recipe.NewOrderedMap[string](),
	}
	rec.Variables.Set("srcdir", "src")

	task := &recipe.Task{Name: "build", Inputs: []recipe.IOEntry{{Name: "src", Glob: "{{ var.srcdir }}/*.go"}}}
	n := &Node{ID: "build", Task: task, Args: map[string]string{}, WorkingDir: "/proj", EffectiveInputs: task.Inputs}

	mtime := time.Unix(1000, 0)
	fs := realGlobFS{mtimes: map[string]time.Time{"/proj/src/a.go": mtime}}

	out := ExpandEffectiveInputs(n, rec, fakeEnv{vars: map[string]string{}}, fakeClock{time.Now()}, fs, discardLogger(t))
	require.Len(t, out, 1)
	require.Contains(t, out, "/proj/src/a.go")
}
