package tmpl

import (
	"strconv"
	"time"
)

// BuiltinInputs are the ambient values the execution driver gathers
// once per task execution before capturing the `tt.*` scope, so that
// every `tt.timestamp*` reference within one run resolves to the same
// instant (spec.md §4.2).
type BuiltinInputs struct {
	ProjectRoot string
	RecipeDir   string
	TaskName    string
	WorkingDir  string
	Now         time.Time
	UserHome    string
	UserName    string
}

// Builtins captures tt.* once, per spec.md §4.2's "Within a single
// task execution, all timestamp* references return the same value
// captured once at task start."
func Builtins(in BuiltinInputs) map[string]string {
	return map[string]string{
		"project_root":   in.ProjectRoot,
		"recipe_dir":      in.RecipeDir,
		"task_name":       in.TaskName,
		"working_dir":     in.WorkingDir,
		"timestamp":      in.Now.UTC().Format(time.RFC3339),
		"timestamp_unix": strconv.FormatInt(in.Now.Unix(), 10),
		"user_home":      in.UserHome,
		"user_name":      in.UserName,
	}
}
