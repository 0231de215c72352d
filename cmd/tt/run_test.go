package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tasktree-dev/tasktree/internal/recipe"
)

func TestSplitTaskArgs(t *testing.T) {
	t.Parallel()

	t.Run("no args yields neither form", func(t *testing.T) {
		t.Parallel()
		positional, named := splitTaskArgs(nil)
		require.Empty(t, positional)
		require.Empty(t, named)
	})

	t.Run("bare values are positional", func(t *testing.T) {
		t.Parallel()
		positional, named := splitTaskArgs([]string{"x86", "release"})
		require.Equal(t, []string{"x86", "release"}, positional)
		require.Empty(t, named)
	})

	t.Run("key=value pairs are named", func(t *testing.T) {
		t.Parallel()
		_, named := splitTaskArgs([]string{"arch=x86", "mode=release"})
		require.Equal(t, map[string]string{"arch": "x86", "mode": "release"}, named)
	})

	t.Run("any named pair switches the whole binding to named", func(t *testing.T) {
		t.Parallel()
		positional, named := splitTaskArgs([]string{"arch=x86", "release"})
		require.Empty(t, positional)
		require.Equal(t, map[string]string{"arch": "x86"}, named)
	})
}

func TestRunCommandExecutesLeafTask(t *testing.T) {
	path := writeTestRecipe(t)

	stdout, err := executeRunCommand("build", "--file", path, "--log-level", "error")
	require.NoError(t, err)
	require.NotEmpty(t, stdout)

	state := filepath.Join(filepath.Dir(path), ".tasktree-state")
	_, statErr := os.Stat(state)
	require.NoError(t, statErr)
}

func TestRunCommandUnknownTaskFails(t *testing.T) {
	path := writeTestRecipe(t)

	_, err := executeRunCommand("missing", "--file", path)
	require.Error(t, err)
}

func TestRunCommandRejectsUnknownOutputMode(t *testing.T) {
	path := writeTestRecipe(t)

	_, err := executeRunCommand("build", "--file", path, "--output", "bogus")
	require.Error(t, err)
}

func TestParseOutputMode(t *testing.T) {
	t.Parallel()

	mode, err := parseOutputMode("on-err")
	require.NoError(t, err)
	require.Equal(t, recipe.TaskOutputOnErr, mode)

	_, err = parseOutputMode("bogus")
	require.Error(t, err)

	mode, err = parseOutputMode("")
	require.NoError(t, err)
	require.Empty(t, mode)
}

func executeRunCommand(args ...string) (string, error) {
	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"run"}, args...))

	err := root.Execute()
	return buf.String(), err
}
