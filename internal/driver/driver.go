// Package driver runs the stale nodes of a built Graph in topological
// order, implementing spec.md §4.5: container image build-and-cache,
// command materialization, environment composition, the recursion
// guard, the runner-nesting policy, task_output stdio handling, and
// state persistence after each successful node.
package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tasktree-dev/tasktree/internal/freshness"
	"github.com/tasktree-dev/tasktree/internal/graph"
	"github.com/tasktree-dev/tasktree/internal/logger"
	"github.com/tasktree-dev/tasktree/internal/model"
	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

// RunOptions carries the invocation-level knobs a CLI run applies on
// top of a task's own declared behavior.
type RunOptions struct {
	// OutputOverride, when non-empty, replaces every node's own
	// task_output setting for this invocation (the CLI's --output flag).
	OutputOverride recipe.TaskOutputMode

	// OnNodeStart and OnNodeDone, when non-nil, let a CLI front end
	// drive a live progress view off the same sequential loop that
	// decides execution order, rather than replaying a results slice
	// after the fact.
	OnNodeStart func(nodeID string, at time.Time)
	OnNodeDone  func(result model.NodeResult)
}

// Run executes every stale node in g.Order, in order, stopping at the
// first failure. results must come from freshness.ClassifyAll against
// the same Graph. State updates are written after each successful
// node; a failure leaves prior state untouched (spec.md §4.5 step 7).
func Run(ctx context.Context, g *graph.Graph, rec *recipe.Recipe, results []*freshness.Result, state *freshness.State, statePath string, fs platform.FileSystem, env platform.Environment, clock platform.Clock, spawner platform.ProcessSpawner, log *logger.Logger, opts RunOptions) error {
	resultByID := make(map[string]*freshness.Result, len(results))
	for _, r := range results {
		resultByID[r.Node.ID] = r
	}

	if err := pruneState(state, rec); err != nil {
		return err
	}

	chain := parseCallChain(env)
	containerizedRunner, insideContainer := env.Getenv("TT_CONTAINERIZED_RUNNER")

	rt := &execRuntime{
		rec:       rec,
		fs:        fs,
		env:       env,
		clock:     clock,
		spawner:   spawner,
		log:       log,
		opts:      opts,
		images:    newImageCache(),
		outputs:   map[string]map[string]string{},
		statePath: statePath,
	}

	for _, n := range g.Order {
		r := resultByID[n.ID]
		if r == nil || !r.Stale {
			if r != nil {
				rt.outputs[n.Task.Name] = cachedOutputsFromState(n, state, rt, fs, log)
			}
			if opts.OnNodeDone != nil {
				opts.OnNodeDone(model.NodeResult{NodeID: n.ID, Status: model.StatusFresh, Timestamp: clock.Now()})
			}
			continue
		}

		start := clock.Now()
		if opts.OnNodeStart != nil {
			opts.OnNodeStart(n.ID, start)
		}

		err := rt.runNode(ctx, n, state, chain, containerizedRunner, insideContainer)
		if opts.OnNodeDone != nil {
			result := model.NodeResult{NodeID: n.ID, Duration: clock.Now().Sub(start), Timestamp: clock.Now()}
			if err != nil {
				result.Status = model.StatusFailed
				result.Error = err
				result.Message = err.Error()
			} else {
				result.Status = model.StatusSuccess
			}
			opts.OnNodeDone(result)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// execRuntime carries the collaborators and accumulated state threaded
// through one Run call's sequential node loop.
type execRuntime struct {
	rec       *recipe.Recipe
	fs        platform.FileSystem
	env       platform.Environment
	clock     platform.Clock
	spawner   platform.ProcessSpawner
	log       *logger.Logger
	opts      RunOptions
	images    *imageCache
	outputs   map[string]map[string]string // task name -> output name -> resolved value, for dep.* lookups
	statePath string
}

func (rt *execRuntime) runNode(ctx context.Context, n *graph.Node, state *freshness.State, chain []string, containerizedRunner string, insideContainer bool) error {
	if containsName(chain, n.Task.Name) {
		return tterrors.NewRecursionDetectedError(append(append([]string(nil), chain...), n.Task.Name))
	}
	nodeChain := append(append([]string(nil), chain...), n.Task.Name)

	runner := rt.rec.Runners[n.Runner]

	effectiveRunner, runInContainer, err := resolveNestingPolicy(n.Runner, runner, containerizedRunner, insideContainer)
	if err != nil {
		return err
	}

	now := rt.clock.Now()
	scope, _, resolvedOutputs, err := buildExecScope(n, rt.rec, rt.outputs, rt.env, now)
	if err != nil {
		return err
	}

	cmd, err := resolveCmd(n.Task, scope)
	if err != nil {
		return err
	}

	scriptPath, cleanup, err := materializeScript(rt.fs, n, effectiveRunner, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	envList, err := composeEnv(rt.env, n, effectiveRunner, runInContainer, nodeChain, rt.statePath)
	if err != nil {
		return err
	}

	var exitCode int
	if runInContainer && effectiveRunner.Kind == recipe.RunnerContainer {
		image, err := rt.images.ensureBuilt(ctx, rt.spawner, rt.fs, rt.rec.RecipeDir, effectiveRunner.Container, rt.log)
		if err != nil {
			return err
		}
		exitCode, err = runInContainerRunner(ctx, rt.spawner, rt.fs, effectiveRunner.Container, image, n, scriptPath, envList, rt.statePath, rt.outputMode(n), rt.log)
		if err != nil {
			return err
		}
	} else {
		exitCode, err = runOnHost(ctx, rt.spawner, n, scriptPath, envList, rt.outputMode(n), rt.log)
		if err != nil {
			return err
		}
	}

	if exitCode != 0 {
		return tterrors.NewTaskFailedError(n.Task.Name, exitCode, fmt.Errorf("exit code %d", exitCode))
	}

	rt.outputs[n.Task.Name] = outputsMap(resolvedOutputs)

	expanded := graph.ExpandEffectiveInputs(n, rt.rec, rt.env, rt.clock, rt.fs, rt.log)

	defHash := freshness.DefinitionHashOf(n.Task, runner)
	argHash := freshness.ArgBindingHashOf(n.Args)
	state.Put(defHash, argHash, now.Unix(), expanded)

	if err := state.Save(rt.fs); err != nil {
		return err
	}

	return nil
}

func (rt *execRuntime) outputMode(n *graph.Node) recipe.TaskOutputMode {
	if rt.opts.OutputOverride != "" {
		return rt.opts.OutputOverride
	}
	if n.Task.TaskOutput != "" {
		return n.Task.TaskOutput
	}
	return recipe.TaskOutputAll
}

func containsName(chain []string, name string) bool {
	for _, c := range chain {
		if c == name {
			return true
		}
	}
	return false
}

func parseCallChain(env platform.Environment) []string {
	raw, ok := env.Getenv("TT_CALL_CHAIN")
	if !ok || raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// pruneState removes entries whose definition hash no longer
// corresponds to any task in the recipe, computed with each task's
// structural (CLI-independent) runner, per spec.md §4.4 step 8.
func pruneState(state *freshness.State, rec *recipe.Recipe) error {
	valid := map[freshness.DefinitionHash]bool{}
	for _, name := range rec.Tasks.Keys() {
		task, ok := rec.Tasks.Get(name)
		if !ok {
			continue
		}
		runnerName := graph.ResolveDefaultRunnerName(task, rec)
		runner := rec.Runners[runnerName]
		valid[freshness.DefinitionHashOf(task, runner)] = true
	}
	state.Prune(valid)
	return nil
}

// cachedOutputsFromState re-derives a fresh (unexecuted) node's
// resolved output values so later nodes' dep.* references still work
// even when the dependency itself was skipped this invocation.
func cachedOutputsFromState(n *graph.Node, state *freshness.State, rt *execRuntime, fs platform.FileSystem, log *logger.Logger) map[string]string {
	now := rt.clock.Now()
	_, _, resolvedOutputs, err := buildExecScope(n, rt.rec, rt.outputs, rt.env, now)
	if err != nil {
		log.WithFields(map[string]any{"task": n.Task.Name, "error": err.Error()}).Warn("could not re-resolve outputs for a fresh (skipped) node")
		return map[string]string{}
	}
	return outputsMap(resolvedOutputs)
}
