package driver

import (
	"os/user"
	"runtime"
	"strings"

	"github.com/tasktree-dev/tasktree/internal/graph"
	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
)

// composeEnv builds the subprocess environment per spec.md §4.5 step
// 3: parent process environment, then runner env, then exported args,
// then the TT_* internal variables.
func composeEnv(env platform.Environment, n *graph.Node, runner *recipe.Runner, runInContainer bool, chain []string, statePath string) ([]string, error) {
	out := append([]string(nil), env.Environ()...)

	if runner != nil && runner.Kind == recipe.RunnerContainer && runner.Container != nil {
		for _, k := range sortedKeys(runner.Container.Env) {
			out = append(out, k+"="+runner.Container.Env[k])
		}
	}

	for _, arg := range n.Task.Args {
		if arg.Exported {
			if v, ok := n.Args[arg.Name]; ok {
				out = append(out, arg.Name+"="+v)
			}
		}
	}

	out = append(out, "TT_CALL_CHAIN="+strings.Join(chain, ","))
	if runInContainer && runner != nil {
		out = append(out, "TT_CONTAINERIZED_RUNNER="+runner.Name)
	}
	out = append(out, "TT_STATE_FILE_PATH="+statePath)

	return out, nil
}

// hostUIDGID returns "uid:gid" for the current POSIX user, or false
// on platforms (Windows) where user mapping is the host's
// responsibility, not the driver's (spec.md §4.5's container
// specifics).
func hostUIDGID() (string, bool) {
	if runtime.GOOS == "windows" {
		return "", false
	}
	u, err := user.Current()
	if err != nil {
		return "", false
	}
	return u.Uid + ":" + u.Gid, true
}
