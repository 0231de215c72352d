package recipe

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strings"

	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/tmpl"
	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

// resolveVariables evaluates `variables` entries top-to-bottom
// (spec.md §4.1): a variable may reference only variables defined
// earlier, so each entry sees the accumulated OrderedMap of values
// resolved so far.
func resolveVariables(ctx context.Context, decls []namedVariable, recipeDir string, fs platform.FileSystem, env platform.Environment, spawner platform.ProcessSpawner, readOnly bool) (*OrderedMap[string], error) {
	out := NewOrderedMap[string]()
	envMap := environMap(env)

	for _, nv := range decls {
		val, err := resolveOneVariable(ctx, nv, out, recipeDir, fs, envMap, spawner, readOnly)
		if err != nil {
			return nil, err
		}
		out.Set(nv.Name, val)
	}

	return out, nil
}

func resolveOneVariable(ctx context.Context, nv namedVariable, varsSoFar *OrderedMap[string], recipeDir string, fs platform.FileSystem, envMap map[string]string, spawner platform.ProcessSpawner, readOnly bool) (string, error) {
	switch nv.Decl.Kind {
	case VarLiteral:
		return nv.Decl.Literal, nil

	case VarFromEnv:
		if v, ok := envMap[nv.Decl.EnvName]; ok {
			return v, nil
		}
		if nv.Decl.EnvDefault != nil {
			return *nv.Decl.EnvDefault, nil
		}
		return "", tterrors.NewResolutionError("VariableNotSet", "", nv.Decl.EnvName, "environment variable is not set and no default was given", tterrors.Location{}, nil)

	case VarFromFile:
		path := expandHome(nv.Decl.ReadPath)
		if !strings.HasPrefix(path, "/") && !isWindowsAbs(path) {
			path = joinPath(recipeDir, path)
		}
		data, err := fs.ReadFile(path)
		if err != nil {
			return "", tterrors.NewResolutionError("VariableReadFailed", "", nv.Name, err.Error(), tterrors.Location{}, err)
		}
		return strings.TrimSuffix(string(data), "\n"), nil

	case VarFromEval:
		if readOnly {
			return "", tterrors.NewResolutionError("VariableEvalFailed", "", nv.Name, "eval variables cannot run while the loader is in read-only inspection mode", tterrors.Location{}, nil)
		}
		out, err := runEvalVariable(ctx, spawner, nv.Decl.EvalCommand, recipeDir, envMap)
		if err != nil {
			return "", tterrors.NewResolutionError("VariableEvalFailed", "", nv.Name, err.Error(), tterrors.Location{}, err)
		}
		return strings.TrimSuffix(out, "\n"), nil

	case VarTemplate:
		scope := tmpl.Scope{
			Var: mapFromOrdered(varsSoFar),
			Env: envMap,
			Tt:  map[string]string{"recipe_dir": recipeDir},
		}
		return tmpl.Resolve(nv.Decl.Template, scope)

	default:
		return "", tterrors.NewValidationError("SchemaViolation", nv.Name, "unrecognised variable declaration", tterrors.Location{}, nil)
	}
}

// runEvalVariable spawns c through the host shell in dir and captures
// stdout, via spawner rather than exec.Command directly so the eval
// variable kind is fakeable in tests the same way the Execution
// Driver's own subprocess calls are. Per spec.md §9's resolution of
// the source's inconsistency, eval variables always run on the host,
// never inside a container runner.
func runEvalVariable(ctx context.Context, spawner platform.ProcessSpawner, c, dir string, envMap map[string]string) (string, error) {
	shell, shellArgs, err := hostShell()
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	spawned, err := spawner.Spawn(ctx, platform.SpawnRequest{
		Path:   shell,
		Args:   append(shellArgs, c),
		Dir:    dir,
		Env:    flattenEnv(envMap),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		return "", tterrors.NewExecutionError(c, err)
	}

	if err := spawned.Wait(); err != nil || spawned.ExitCode() != 0 {
		if err == nil {
			err = tterrors.NewExecutionError(c, nil)
		}
		return "", tterrors.NewExecutionError(c, err)
	}

	return stdout.String(), nil
}

func hostShell() (string, []string, error) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}, nil
	}
	if path, err := exec.LookPath("bash"); err == nil {
		return path, []string{"-c"}, nil
	}
	return "/bin/sh", []string{"-c"}, nil
}

func environMap(env platform.Environment) map[string]string {
	out := make(map[string]string)
	for _, kv := range env.Environ() {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			out[kv[:idx]] = kv[idx+1:]
		}
	}
	return out
}

func flattenEnv(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}

func mapFromOrdered(m *OrderedMap[string]) map[string]string {
	out := make(map[string]string, m.Len())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		out[k] = v
	}
	return out
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") || p == "~" {
		home := homeDir()
		if home != "" {
			return home + strings.TrimPrefix(p, "~")
		}
	}
	return p
}
