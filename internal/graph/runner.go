package graph

import (
	"runtime"

	"github.com/tasktree-dev/tasktree/internal/recipe"
)

// BuildOptions carries the inputs to Build that come from outside the
// Recipe itself: the CLI's runner override, and the config-layer
// fallback runner name. Build reads no config files itself; it uses
// ConfigDefault only as passed in, and cmd/tt leaves it empty.
type BuildOptions struct {
	RunnerOverride string
	ConfigDefault  string
}

// resolveRunner implements the seven-tier order from spec.md §4.3.
// Tiers 2 and 4 both read task.Runner; which one actually fires
// depends on PinRunner, since an import-site run_in override (tier 3)
// must win over an unpinned task runner (tier 4) but lose to a pinned
// one (tier 2).
func resolveRunner(task *recipe.Task, rec *recipe.Recipe, opts BuildOptions) string {
	if opts.RunnerOverride != "" {
		return opts.RunnerOverride
	}
	if task.PinRunner && task.Runner != "" {
		return task.Runner
	}
	if task.RunIn != "" {
		return task.RunIn
	}
	if task.Runner != "" {
		return task.Runner
	}
	if rec.Default != "" {
		return rec.Default
	}
	if opts.ConfigDefault != "" {
		return opts.ConfigDefault
	}
	return platformDefaultRunner()
}

// ResolveDefaultRunnerName exposes the same tiered resolution with no
// CLI-level override or config-layer fallback, for callers outside a
// graph Build that only need a task's structural (invocation-
// independent) runner name — the Execution Driver's state-pruning pass,
// which must consider every task in the recipe, not just the ones in
// the current invocation's graph.
func ResolveDefaultRunnerName(task *recipe.Task, rec *recipe.Recipe) string {
	return resolveRunner(task, rec, BuildOptions{})
}

// platformDefaultRunner names the tier-7 fallback. It need not exist
// in the recipe's Runners map: the execution driver finds no runner
// entry for it and runs the task on the host as a /bin/sh script (a
// .bat file on Windows), as it does for any name missing from
// Runners. The named shell itself is not invoked.
func platformDefaultRunner() string {
	if runtime.GOOS == "windows" {
		return "cmd"
	}
	return "bash"
}
