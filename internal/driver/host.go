package driver

import (
	"context"

	"github.com/tasktree-dev/tasktree/internal/graph"
	"github.com/tasktree-dev/tasktree/internal/logger"
	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
)

// runOnHost spawns the materialized, executable script directly,
// applying the node's working directory and the composed environment.
// It is used both for a genuine Shell runner and for the "same
// container" / "shell-only inside an existing container" nesting
// cases, which by the time they reach here have already been reduced
// to "just run this script in the current process's environment."
func runOnHost(ctx context.Context, spawner platform.ProcessSpawner, n *graph.Node, scriptPath string, envList []string, mode recipe.TaskOutputMode, log *logger.Logger) (int, error) {
	stdout, stderr, flush := outputWriters(mode)

	req := platform.SpawnRequest{
		Path:   scriptPath,
		Dir:    n.WorkingDir,
		Env:    envList,
		Stdout: stdout,
		Stderr: stderr,
	}

	spawned, err := spawner.Spawn(ctx, req)
	if err != nil {
		return -1, err
	}
	waitErr := spawned.Wait()
	flush(waitErr != nil || spawned.ExitCode() != 0)
	return spawned.ExitCode(), nil
}
