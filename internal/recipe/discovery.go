package recipe

import (
	"path/filepath"

	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

var discoveryNames = []string{"tasktree.yaml", "tasktree.yml", "tt.yaml"}

// Discover walks startDir and its ancestors looking for the recipe
// file, in priority order (spec.md §4.1): tasktree.yaml, tasktree.yml,
// tt.yaml, and failing all three, any single `*.tasks` file. The
// directory containing the chosen file becomes the project root.
func Discover(fs FileGlobStat, startDir string) (path string, projectRoot string, err error) {
	dir := startDir
	for {
		for _, name := range discoveryNames {
			candidate := filepath.Join(dir, name)
			if fs.IsFile(candidate) {
				return candidate, dir, nil
			}
		}

		matches, globErr := fs.Glob(filepath.Join(dir, "*.tasks"))
		if globErr == nil && len(matches) > 0 {
			if len(matches) > 1 {
				return "", "", tterrors.NewValidationError("SchemaViolation", dir, "multiple *.tasks files found in the same directory", tterrors.Location{}, nil)
			}
			return matches[0], dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", tterrors.NewValidationError("SchemaViolation", startDir, "no recipe file found in this directory or any ancestor", tterrors.Location{}, nil)
		}
		dir = parent
	}
}

// FileGlobStat is the narrow slice of platform.FileSystem discovery
// needs, kept separate so callers can pass a lighter test double.
type FileGlobStat interface {
	IsFile(path string) bool
	Glob(pattern string) ([]string, error)
}
