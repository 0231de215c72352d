package graph

import (
	"fmt"

	"github.com/tasktree-dev/tasktree/internal/recipe"
	"github.com/tasktree-dev/tasktree/internal/tmpl"
	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

// bindRawArgs maps a DepInvocation's Positional/Named/Defaults shape
// onto the callee's ArgSpec list, producing one unexpanded template
// string per arg (spec.md §4.3 step 2). It does not template-expand
// or type-validate; that happens afterward against the caller's scope.
func bindRawArgs(callee *recipe.Task, dep recipe.DepInvocation) (map[string]string, error) {
	switch dep.Mode {
	case recipe.DepDefaults:
		return bindDefaults(callee)
	case recipe.DepPositional:
		return bindPositional(callee, dep.Positional)
	case recipe.DepNamed:
		return bindNamed(callee, dep.Named)
	default:
		return nil, tterrors.NewGraphError("UnknownArgument", callee.Name, "unrecognised dependency binding mode", nil)
	}
}

func bindDefaults(callee *recipe.Task) (map[string]string, error) {
	out := make(map[string]string, len(callee.Args))
	for _, spec := range callee.Args {
		if spec.Default == nil {
			return nil, tterrors.NewGraphError("MissingArgument", callee.Name, fmt.Sprintf("argument %q has no default", spec.Name), nil)
		}
		out[spec.Name] = *spec.Default
	}
	return out, nil
}

func bindPositional(callee *recipe.Task, values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, tterrors.NewGraphError("MissingArgument", callee.Name, "positional dependency binding must not be empty", nil)
	}
	if len(values) > len(callee.Args) {
		return nil, tterrors.NewGraphError("UnknownArgument", callee.Name, "more positional arguments than the task declares", nil)
	}

	out := make(map[string]string, len(callee.Args))
	for i, spec := range callee.Args {
		if i < len(values) {
			out[spec.Name] = values[i]
			continue
		}
		if spec.Default == nil {
			return nil, tterrors.NewGraphError("MissingArgument", callee.Name, fmt.Sprintf("argument %q has no default and no positional value was given", spec.Name), nil)
		}
		out[spec.Name] = *spec.Default
	}
	return out, nil
}

func bindNamed(callee *recipe.Task, named map[string]string) (map[string]string, error) {
	specByName := make(map[string]*recipe.ArgSpec, len(callee.Args))
	for _, spec := range callee.Args {
		specByName[spec.Name] = spec
	}

	out := make(map[string]string, len(callee.Args))
	for name, val := range named {
		if _, ok := specByName[name]; !ok {
			return nil, tterrors.NewGraphError("UnknownArgument", callee.Name, fmt.Sprintf("task has no argument %q", name), nil)
		}
		out[name] = val
	}

	for _, spec := range callee.Args {
		if _, ok := out[spec.Name]; ok {
			continue
		}
		if spec.Default == nil {
			return nil, tterrors.NewGraphError("MissingArgument", callee.Name, fmt.Sprintf("argument %q has no default and was not named", spec.Name), nil)
		}
		out[spec.Name] = *spec.Default
	}
	return out, nil
}

// expandAndValidate template-expands each raw bound value against the
// caller's scope and revalidates it against the callee's ArgSpec
// (spec.md §4.3 steps 2-3).
func expandAndValidate(callee *recipe.Task, raw map[string]string, callerScope tmpl.Scope) (map[string]string, error) {
	specByName := make(map[string]*recipe.ArgSpec, len(callee.Args))
	for _, spec := range callee.Args {
		specByName[spec.Name] = spec
	}

	out := make(map[string]string, len(raw))
	for name, tmplStr := range raw {
		val, err := tmpl.Resolve(tmplStr, callerScope)
		if err != nil {
			return nil, err
		}

		spec := specByName[name]
		if spec.Exported {
			out[name] = val
			continue
		}

		if !recipe.ValidateArgType(spec.Type, val) {
			return nil, tterrors.NewGraphError("ArgumentTypeMismatch", callee.Name, fmt.Sprintf("argument %q = %q does not match type %s", name, val, spec.Type), nil)
		}
		if !recipe.InChoices(spec, val) {
			return nil, tterrors.NewGraphError("ArgumentNotInChoices", callee.Name, fmt.Sprintf("argument %q = %q is not among the declared choices", name, val), nil)
		}
		if !recipe.WithinRange(spec, val) {
			return nil, tterrors.NewGraphError("ArgumentOutOfRange", callee.Name, fmt.Sprintf("argument %q = %q is outside min/max", name, val), nil)
		}
		out[name] = val
	}
	return out, nil
}
