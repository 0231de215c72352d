package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tasktree-dev/tasktree/internal/driver"
	"github.com/tasktree-dev/tasktree/internal/freshness"
	"github.com/tasktree-dev/tasktree/internal/graph"
	"github.com/tasktree-dev/tasktree/internal/logger"
	"github.com/tasktree-dev/tasktree/internal/model"
	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
	"github.com/tasktree-dev/tasktree/internal/tui"
)

type runOptions struct {
	file     string
	force    bool
	only     string
	runner   string
	output   string
	logLevel string
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <task> [args...] [name=value...]",
		Short: "Run a task and every stale dependency it needs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, root, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Path to an explicit recipe file, bypassing discovery")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Treat every node in the task's dependency tree as stale")
	cmd.Flags().StringVar(&opts.only, "only", "", "Force only the node with this ID stale")
	cmd.Flags().StringVar(&opts.runner, "runner", "", "Override the runner resolved for every node in this invocation")
	cmd.Flags().StringVar(&opts.output, "output", "", "Override task_output for this invocation (all|out|err|on-err|none)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Logger verbosity (debug|info|warn|error)")

	return cmd
}

// splitTaskArgs separates the requested task's trailing arguments into
// bare positional values and key=value pairs, per spec.md §6.1's
// `tt run <task> [args...] [name=value...]` surface. The two forms
// are mutually exclusive for a single invocation: any `name=value`
// pair present switches the whole binding to named.
func splitTaskArgs(args []string) ([]string, map[string]string) {
	named := map[string]string{}
	var positional []string

	for _, a := range args {
		if idx := strings.IndexByte(a, '='); idx > 0 {
			named[a[:idx]] = a[idx+1:]
			continue
		}
		positional = append(positional, a)
	}

	if len(named) > 0 {
		return nil, named
	}
	return positional, nil
}

func runRun(cmd *cobra.Command, root *rootFlags, args []string, opts *runOptions) error {
	taskName := args[0]
	positional, named := splitTaskArgs(args[1:])

	var binding recipe.DepInvocation
	switch {
	case len(named) > 0:
		binding = recipe.DepInvocation{Mode: recipe.DepNamed, Named: named}
	case len(positional) > 0:
		binding = recipe.DepInvocation{Mode: recipe.DepPositional, Positional: positional}
	default:
		binding = recipe.DepInvocation{Mode: recipe.DepDefaults}
	}

	outputOverride, err := parseOutputMode(opts.output)
	if err != nil {
		return newCommandError("run", "validating --output", err, "Use one of: all, out, err, on-err, none.")
	}

	fs := platform.OSFileSystem{}
	env := platform.OSEnvironment{}
	clock := platform.SystemClock{}
	spawner := platform.OSProcessSpawner{}

	rec, err := loadRecipe(cmd.Context(), fs, env, spawner, opts.file, recipe.ParseOptions{})
	if err != nil {
		return newCommandError("run", "loading the recipe", err, "Run 'tt init' to create a recipe, or pass --file to point at one explicitly.")
	}

	level := opts.logLevel
	if root.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, HumanReadable: true})
	if err != nil {
		return newCommandError("run", "configuring the logger", err, "Check --log-level is one of debug, info, warn, error.")
	}

	g, err := graph.Build(rec, taskName, binding, clock, env, graph.BuildOptions{RunnerOverride: opts.runner})
	if err != nil {
		return newCommandError("run", fmt.Sprintf("building the dependency graph for %q", taskName), err, fmt.Sprintf("Run 'tt show %s' to inspect its declared dependencies and arguments.", taskName))
	}

	statePath := freshness.DefaultStatePath(rec.ProjectRoot, env)
	state, err := freshness.LoadState(fs, statePath)
	if err != nil {
		return newCommandError("run", "loading run state", err, "If the state file is corrupt beyond repair, run 'tt clean' and retry.")
	}

	results := freshness.ClassifyAll(g, rec, state, fs, env, clock, log, freshness.ClassifyOptions{Force: opts.force, Only: opts.only})

	nodeIDs := make([]string, len(g.Order))
	for i, n := range g.Order {
		nodeIDs[i] = n.ID
	}

	nonInteractive := !term.IsTerminal(int(os.Stdout.Fd()))
	modelState := tui.NewModel(taskName, nodeIDs, nonInteractive)
	interactive := !nonInteractive

	var program *tea.Program
	done := make(chan struct{})
	var programErr error

	if interactive {
		program = tea.NewProgram(modelState)
		go func() {
			_, programErr = program.Run()
			close(done)
		}()
	}

	runErr := driver.Run(cmd.Context(), g, rec, results, state, statePath, fs, env, clock, platform.OSProcessSpawner{}, log, driver.RunOptions{
		OutputOverride: outputOverride,
		OnNodeStart: func(nodeID string, at time.Time) {
			dispatchTuiMessage(interactive, program, &modelState, tui.NodeStartMsg{ID: nodeID, Time: at})
		},
		OnNodeDone: func(result model.NodeResult) {
			dispatchTuiMessage(interactive, program, &modelState, tui.NodeDoneMsg{Result: result})
		},
	})

	if interactive {
		program.Send(tea.QuitMsg{})
		<-done
		if programErr != nil {
			return programErr
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), modelState.View())
	}

	if runErr != nil {
		return newCommandError("run", fmt.Sprintf("executing %q", taskName), runErr, "Re-run with --log-level debug for more detail, or --only to isolate the failing node.")
	}

	return nil
}

func dispatchTuiMessage(interactive bool, program *tea.Program, state *tui.Model, msg tea.Msg) {
	if interactive {
		if program != nil {
			program.Send(msg)
		}
		return
	}

	updated, _ := state.Update(msg)
	if m, ok := updated.(tui.Model); ok {
		*state = m
	}
}
