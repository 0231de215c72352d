package driver

import (
	"github.com/tasktree-dev/tasktree/internal/recipe"
	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

// resolveNestingPolicy implements spec.md §4.5 step 5: when this
// invocation is itself already running inside a Container runner (a
// nested `tt` call) and the current node also wants a container, the
// nesting rules decide whether to actually launch one.
//
// It returns the runner to actually execute with and whether that
// execution still needs a container launch (false means: run directly
// in the already-running container, or on the host).
func resolveNestingPolicy(runnerName string, runner *recipe.Runner, containerizedRunner string, insideContainer bool) (*recipe.Runner, bool, error) {
	if !insideContainer || runner == nil || runner.Kind != recipe.RunnerContainer {
		return runner, runner != nil && runner.Kind == recipe.RunnerContainer, nil
	}

	if runnerName == containerizedRunner {
		// Same container: execute directly against its shell, no
		// nested container launch.
		return &recipe.Runner{Name: runnerName, Kind: recipe.RunnerShell, Shell: &recipe.ShellRunner{Shell: "sh"}}, false, nil
	}

	return nil, false, tterrors.NewNestedContainerSwitchError(runnerName, nil)
}
