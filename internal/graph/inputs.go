package graph

import (
	"path/filepath"

	"github.com/tasktree-dev/tasktree/internal/logger"
	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
	"github.com/tasktree-dev/tasktree/internal/tmpl"
)

// ExpandEffectiveInputs resolves the var/tt templates in each of n's
// effective input globs (declared inputs plus direct dependencies'
// declared outputs, per spec.md §4.3.6), glob-expands the resolved
// pattern relative to n's working directory, and stats every match.
// The Freshness Engine calls this before a node runs to classify
// staleness; the Execution Driver calls it again after a node
// succeeds to record state. Sharing one implementation keeps both
// sides looking at the same file set for the same recipe, instead of
// the Freshness Engine globbing the raw pattern while the driver
// Stats a single unexpanded path.
func ExpandEffectiveInputs(n *Node, rec *recipe.Recipe, env platform.Environment, clock platform.Clock, fs platform.FileSystem, log *logger.Logger) map[string]int64 {
	out := map[string]int64{}
	scope := inputGlobScope(n, rec, env, clock)

	for _, in := range n.EffectiveInputs {
		resolved, err := tmpl.ResolveInputGlob(in.Glob, scope)
		if err != nil {
			log.WithFields(map[string]any{"task": n.Task.Name, "glob": in.Glob, "error": err.Error()}).Warn("failed to resolve input glob template")
			continue
		}

		pattern := resolved
		if !filepath.IsAbs(pattern) && n.WorkingDir != "" {
			pattern = filepath.Join(n.WorkingDir, pattern)
		}

		matches, err := fs.Glob(pattern)
		if err != nil {
			log.WithFields(map[string]any{"task": n.Task.Name, "glob": pattern, "error": err.Error()}).Warn("failed to expand input glob")
			continue
		}
		if len(matches) == 0 {
			log.WithFields(map[string]any{"task": n.Task.Name, "glob": pattern}).Warn("input glob matched no files")
			continue
		}

		for _, path := range matches {
			info, err := fs.Stat(path)
			if err != nil {
				log.WithFields(map[string]any{"task": n.Task.Name, "path": path, "error": err.Error()}).Warn("failed to stat expanded input")
				continue
			}
			out[path] = info.ModTime().UnixNano()
		}
	}
	return out
}

func inputGlobScope(n *Node, rec *recipe.Recipe, env platform.Environment, clock platform.Clock) tmpl.Scope {
	vars := make(map[string]string, rec.Variables.Len())
	for _, k := range rec.Variables.Keys() {
		v, _ := rec.Variables.Get(k)
		vars[k] = v
	}

	tt := tmpl.Builtins(tmpl.BuiltinInputs{
		ProjectRoot: rec.ProjectRoot,
		RecipeDir:   rec.RecipeDir,
		TaskName:    n.Task.Name,
		WorkingDir:  n.WorkingDir,
		Now:         clock.Now(),
		UserHome:    lookupEnv(env, "HOME", "USERPROFILE"),
		UserName:    lookupEnv(env, "USER", "USERNAME"),
	})

	return tmpl.Scope{Task: n.Task.Name, Var: vars, Env: environMap(env), Tt: tt}
}
