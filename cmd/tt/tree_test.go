package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTreeCommandRendersDependencies(t *testing.T) {
	path := writeTestRecipe(t)

	stdout, err := executeTreeCommand("test", "--file", path)
	require.NoError(t, err)
	require.Contains(t, stdout, "test")
	require.Contains(t, stdout, "build")
	require.Contains(t, stdout, "└──")
}

func TestTreeCommandLeafTaskHasNoChildren(t *testing.T) {
	path := writeTestRecipe(t)

	stdout, err := executeTreeCommand("build", "--file", path)
	require.NoError(t, err)
	require.Contains(t, stdout, "build")
	require.NotContains(t, stdout, "└──")
}

func executeTreeCommand(args ...string) (string, error) {
	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"tree"}, args...))

	err := root.Execute()
	return buf.String(), err
}
