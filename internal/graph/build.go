package graph

import (
	"sort"
	"strings"
	"time"

	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
	"github.com/tasktree-dev/tasktree/internal/tmpl"
	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

// Build expands requestedTask and its transitive dependencies into a
// topologically ordered Graph, implementing spec.md §4.3 in full:
// DFS expansion, per-DepInvocation argument binding and validation,
// node identity by (task_name, sorted-arg-binding), cycle detection
// with the full ring, direct-only input inheritance, and the
// seven-tier runner resolution order.
//
// rootBinding supplies how the CLI-level arguments for requestedTask
// bind (Defaults/Positional/Named), reusing the same machinery a
// DepInvocation uses internally so there is exactly one binding
// algorithm in the package.
func Build(rec *recipe.Recipe, requestedTask string, rootBinding recipe.DepInvocation, clock platform.Clock, env platform.Environment, opts BuildOptions) (*Graph, error) {
	if _, ok := rec.Tasks.Get(requestedTask); !ok {
		return nil, tterrors.NewGraphError("UnknownTask", requestedTask, "no such task", nil)
	}

	e := &expander{
		rec:      rec,
		envMap:   environMap(env),
		now:      clock.Now(),
		opts:     opts,
		built:    map[string]*Node{},
		userHome: lookupEnv(env, "HOME", "USERPROFILE"),
		userName: lookupEnv(env, "USER", "USERNAME"),
	}

	rootBinding.TaskName = requestedTask
	rootScope := tmpl.Scope{
		Var: varMap(rec),
		Env: e.envMap,
		Tt:  tmpl.Builtins(tmpl.BuiltinInputs{ProjectRoot: rec.ProjectRoot, RecipeDir: rec.RecipeDir, Now: e.now, UserHome: e.userHome, UserName: e.userName}),
	}

	if _, err := e.resolve(requestedTask, rootBinding, rootScope, nil); err != nil {
		return nil, err
	}

	g := newGraph()
	for id, n := range e.built {
		g.Nodes[id] = n
	}
	if err := g.topologicalSort(); err != nil {
		return nil, err
	}
	return g, nil
}

// expander carries the state threaded through one Build call's
// recursive descent: the collaborators, the running set of fully or
// partially built nodes (keyed by ID, for dedup across diamond
// dependencies), and an insertion counter for topo-sort tie-breaking.
type expander struct {
	rec      *recipe.Recipe
	envMap   map[string]string
	now      time.Time
	opts     BuildOptions
	built    map[string]*Node
	userHome string
	userName string
	seq      int
}

func (e *expander) resolve(taskName string, dep recipe.DepInvocation, callerScope tmpl.Scope, stack []string) (*Node, error) {
	callee, ok := e.rec.Tasks.Get(taskName)
	if !ok {
		return nil, tterrors.NewGraphError("UnknownTask", taskName, "no such task", nil)
	}

	raw, err := bindRawArgs(callee, dep)
	if err != nil {
		return nil, err
	}

	args, err := expandAndValidate(callee, raw, callerScope)
	if err != nil {
		return nil, err
	}

	id := nodeID(taskName, args)

	if inStack(stack, id) {
		return nil, tterrors.NewCycleError("DependencyCycle", ringFrom(stack, id))
	}
	if existing, ok := e.built[id]; ok {
		return existing, nil
	}

	childScope, workingDir := e.scopeFor(callee, args)

	node := &Node{ID: id, Task: callee, Args: args, seq: e.seq, Runner: resolveRunner(callee, e.rec, e.opts), WorkingDir: workingDir}
	e.seq++
	e.built[id] = node
	childStack := append(append([]string(nil), stack...), id)

	effectiveInputs := append([]recipe.IOEntry(nil), callee.Inputs...)
	for _, childDep := range callee.Deps {
		child, err := e.resolve(childDep.TaskName, childDep, childScope, childStack)
		if err != nil {
			return nil, err
		}
		node.DependsOn = append(node.DependsOn, child)
		child.Dependents = append(child.Dependents, node)
		effectiveInputs = append(effectiveInputs, child.Task.Outputs...)
	}
	node.EffectiveInputs = effectiveInputs

	return node, nil
}

func (e *expander) scopeFor(callee *recipe.Task, args map[string]string) (tmpl.Scope, string) {
	partial := tmpl.Scope{
		Task: callee.Name,
		Var:  varMap(e.rec),
		Env:  e.envMap,
		Arg:  args,
		Tt: tmpl.Builtins(tmpl.BuiltinInputs{
			ProjectRoot: e.rec.ProjectRoot,
			RecipeDir:   e.rec.RecipeDir,
			TaskName:    callee.Name,
			Now:         e.now,
			UserHome:    e.userHome,
			UserName:    e.userName,
		}),
	}

	workingDir := callee.WorkingDir
	if workingDir != "" {
		if resolved, err := tmpl.Resolve(workingDir, partial); err == nil {
			workingDir = resolved
		}
	}

	tt := tmpl.Builtins(tmpl.BuiltinInputs{
		ProjectRoot: e.rec.ProjectRoot,
		RecipeDir:   e.rec.RecipeDir,
		TaskName:    callee.Name,
		WorkingDir:  workingDir,
		Now:         e.now,
		UserHome:    e.userHome,
		UserName:    e.userName,
	})

	return tmpl.Scope{Task: callee.Name, Var: partial.Var, Env: e.envMap, Arg: args, Tt: tt}, workingDir
}

func nodeID(taskName string, args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(taskName)
	for _, k := range keys {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(args[k])
	}
	return b.String()
}

func inStack(stack []string, id string) bool {
	for _, s := range stack {
		if s == id {
			return true
		}
	}
	return false
}

func ringFrom(stack []string, id string) []string {
	for i, s := range stack {
		if s == id {
			return append(append([]string(nil), stack[i:]...), id)
		}
	}
	return append(append([]string(nil), stack...), id)
}

func varMap(rec *recipe.Recipe) map[string]string {
	out := make(map[string]string, rec.Variables.Len())
	for _, k := range rec.Variables.Keys() {
		v, _ := rec.Variables.Get(k)
		out[k] = v
	}
	return out
}

func environMap(env platform.Environment) map[string]string {
	out := map[string]string{}
	for _, kv := range env.Environ() {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			out[kv[:idx]] = kv[idx+1:]
		}
	}
	return out
}

func lookupEnv(env platform.Environment, names ...string) string {
	for _, n := range names {
		if v, ok := env.Getenv(n); ok && v != "" {
			return v
		}
	}
	return ""
}
