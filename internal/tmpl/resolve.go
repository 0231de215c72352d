package tmpl

import (
	"fmt"
	"strconv"

	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

// Resolve substitutes every `{{ prefix.path }}` occurrence in s
// against scope, in the four-pass order spec.md §4.2 mandates: var ->
// dep -> self -> arg/env/tt. Each pass operates on the output of the
// prior pass, so a var-substituted path can itself be referenced by a
// later self lookup.
func Resolve(s string, scope Scope) (string, error) {
	s, err := resolvePass(s, func(tok token) (string, bool, error) {
		if tok.prefix != "var" {
			return "", false, nil
		}
		val, ok := scope.Var[tok.path]
		if !ok {
			return "", false, tterrors.NewResolutionError("UndefinedVariable", scope.Task, tok.path, "variable is not defined", tterrors.Location{}, nil)
		}
		return val, true, nil
	})
	if err != nil {
		return "", err
	}

	s, err = resolvePass(s, func(tok token) (string, bool, error) {
		if tok.prefix != "dep" {
			return "", false, nil
		}
		return resolveDep(scope, tok)
	})
	if err != nil {
		return "", err
	}

	s, err = resolvePass(s, func(tok token) (string, bool, error) {
		if tok.prefix != "self" {
			return "", false, nil
		}
		return resolveSelf(scope, tok)
	})
	if err != nil {
		return "", err
	}

	s, err = resolvePass(s, func(tok token) (string, bool, error) {
		switch tok.prefix {
		case "arg":
			val, ok := scope.Arg[tok.path]
			if !ok {
				return "", false, tterrors.NewResolutionError("UndefinedArg", scope.Task, tok.path, "argument is not defined", tterrors.Location{}, nil)
			}
			return val, true, nil
		case "env":
			val, ok := scope.Env[tok.path]
			if !ok {
				return "", false, tterrors.NewResolutionError("UndefinedEnv", scope.Task, tok.path, "environment variable is not set", tterrors.Location{}, nil)
			}
			return val, true, nil
		case "tt":
			val, ok := scope.Tt[tok.path]
			if !ok {
				return "", false, tterrors.NewResolutionError("UndefinedVariable", scope.Task, "tt."+tok.path, "unknown built-in", tterrors.Location{}, nil)
			}
			return val, true, nil
		default:
			return "", false, nil
		}
	})
	if err != nil {
		return "", err
	}

	return s, nil
}

// ResolveInputGlob resolves only the var and tt passes of s, leaving
// dep/self/arg/env tokens untouched. It backs the declared input and
// output globs an IOEntry carries: those are evaluated before a
// node's own exec scope exists, so dep.*/self.*/arg.*/env.* are not
// yet meaningful there (spec.md §4.2's ordering note).
func ResolveInputGlob(s string, scope Scope) (string, error) {
	s, err := resolvePass(s, func(tok token) (string, bool, error) {
		if tok.prefix != "var" {
			return "", false, nil
		}
		val, ok := scope.Var[tok.path]
		if !ok {
			return "", false, tterrors.NewResolutionError("UndefinedVariable", scope.Task, tok.path, "variable is not defined", tterrors.Location{}, nil)
		}
		return val, true, nil
	})
	if err != nil {
		return "", err
	}

	return resolvePass(s, func(tok token) (string, bool, error) {
		if tok.prefix != "tt" {
			return "", false, nil
		}
		val, ok := scope.Tt[tok.path]
		if !ok {
			return "", false, tterrors.NewResolutionError("UndefinedVariable", scope.Task, "tt."+tok.path, "unknown built-in", tterrors.Location{}, nil)
		}
		return val, true, nil
	})
}

func resolvePass(s string, replace func(tok token) (string, bool, error)) (string, error) {
	tokens := tokenize(s)
	return rewrite(s, tokens, replace)
}

// resolveDep handles `dep.<taskname>.outputs.<out_name>`.
func resolveDep(scope Scope, tok token) (string, bool, error) {
	taskName, rest := splitPrefix(tok.path)
	kind, name := splitPrefix(rest)
	if kind != "outputs" {
		return "", false, tterrors.NewResolutionError("UndefinedDependencyOutput", scope.Task, tok.path, "dep references must be of the form dep.<task>.outputs.<name>", tterrors.Location{}, nil)
	}

	outputs, ok := scope.Dep[taskName]
	if !ok {
		return "", false, tterrors.NewResolutionError("UndefinedDependencyOutput", scope.Task, taskName, "no such dependency", tterrors.Location{}, nil)
	}
	val, ok := outputs[name]
	if !ok {
		return "", false, tterrors.NewResolutionError("UndefinedDependencyOutput", scope.Task, fmt.Sprintf("%s.outputs.%s", taskName, name), "dependency has no such named output", tterrors.Location{}, nil)
	}
	return val, true, nil
}

// resolveSelf handles `self.inputs.<n>` / `self.outputs.<n>`, where n
// is a name or a zero-based index.
func resolveSelf(scope Scope, tok token) (string, bool, error) {
	kind, ref := splitPrefix(tok.path)

	var entries []SelfEntry
	switch kind {
	case "inputs":
		entries = scope.SelfInputs
	case "outputs":
		entries = scope.SelfOutputs
	default:
		return "", false, tterrors.NewResolutionError("UndefinedSelfRef", scope.Task, tok.path, "self references must be self.inputs.* or self.outputs.*", tterrors.Location{}, nil)
	}

	if idx, isIndex, negative := parseIndex(ref); isIndex {
		if negative {
			return "", false, tterrors.NewResolutionError("SelfRefIndexOutOfRange", scope.Task, tok.path, "negative indices are not allowed", tterrors.Location{}, nil)
		}
		if idx >= len(entries) {
			return "", false, tterrors.NewResolutionError("SelfRefIndexOutOfRange", scope.Task, tok.path, fmt.Sprintf("valid range is 0..%d", len(entries)-1), tterrors.Location{}, nil)
		}
		return entries[idx].Value, true, nil
	}

	for _, e := range entries {
		if e.Name == ref {
			return e.Value, true, nil
		}
	}
	return "", false, tterrors.NewResolutionError("UndefinedSelfRef", scope.Task, tok.path, "no such named self entry", tterrors.Location{}, nil)
}

func parseIndex(ref string) (value int, isIndex bool, negative bool) {
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, false, false
	}
	if n < 0 {
		return 0, true, true
	}
	return n, true, false
}
