package driver

import (
	"time"

	"github.com/tasktree-dev/tasktree/internal/graph"
	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
	"github.com/tasktree-dev/tasktree/internal/tmpl"
)

// buildExecScope resolves a node's own input/output globs (the var
// pass, applied eagerly so self.* back-references see the resolved
// path per spec.md §4.2's ordering note) and assembles the full
// four-pass Scope the node's cmd template resolves against.
//
// depOutputs maps a direct dependency's task name to its own already-
// resolved named outputs, so dep.<task>.outputs.<name> only ever sees
// direct dependencies, matching the direct-only inheritance redesign.
func buildExecScope(n *graph.Node, rec *recipe.Recipe, depOutputs map[string]map[string]string, env platform.Environment, now time.Time) (tmpl.Scope, []tmpl.SelfEntry, []tmpl.SelfEntry, error) {
	varMap := map[string]string{}
	for _, k := range rec.Variables.Keys() {
		v, _ := rec.Variables.Get(k)
		varMap[k] = v
	}

	envMap := environMap(env)

	tt := tmpl.Builtins(tmpl.BuiltinInputs{
		ProjectRoot: rec.ProjectRoot,
		RecipeDir:   rec.RecipeDir,
		TaskName:    n.Task.Name,
		WorkingDir:  n.WorkingDir,
		Now:         now,
		UserHome:    lookupEnv(env, "HOME", "USERPROFILE"),
		UserName:    lookupEnv(env, "USER", "USERNAME"),
	})

	base := tmpl.Scope{Task: n.Task.Name, Var: varMap, Env: envMap, Arg: n.Args, Tt: tt}

	resolvedInputs, err := resolveSelfEntries(n.Task.Inputs, base)
	if err != nil {
		return tmpl.Scope{}, nil, nil, err
	}
	resolvedOutputs, err := resolveSelfEntries(n.Task.Outputs, base)
	if err != nil {
		return tmpl.Scope{}, nil, nil, err
	}

	dep := map[string]map[string]string{}
	for _, d := range n.DependsOn {
		if outs, ok := depOutputs[d.Task.Name]; ok {
			dep[d.Task.Name] = outs
		}
	}

	full := base
	full.Dep = dep
	full.SelfInputs = resolvedInputs
	full.SelfOutputs = resolvedOutputs

	return full, resolvedInputs, resolvedOutputs, nil
}

func resolveSelfEntries(entries []recipe.IOEntry, scope tmpl.Scope) ([]tmpl.SelfEntry, error) {
	out := make([]tmpl.SelfEntry, 0, len(entries))
	for _, e := range entries {
		val, err := tmpl.Resolve(e.Glob, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, tmpl.SelfEntry{Name: e.Name, Value: val})
	}
	return out, nil
}

func resolveCmd(task *recipe.Task, scope tmpl.Scope) (string, error) {
	return tmpl.Resolve(task.Cmd, scope)
}

func outputsMap(entries []tmpl.SelfEntry) map[string]string {
	out := map[string]string{}
	for _, e := range entries {
		if e.Name != "" {
			out[e.Name] = e.Value
		}
	}
	return out
}

func environMap(env platform.Environment) map[string]string {
	out := map[string]string{}
	for _, kv := range env.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}

func lookupEnv(env platform.Environment, names ...string) string {
	for _, name := range names {
		if v, ok := env.Getenv(name); ok {
			return v
		}
	}
	return ""
}
