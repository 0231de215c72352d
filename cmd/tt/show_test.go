package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShowCommandTableOutput(t *testing.T) {
	path := writeTestRecipe(t)

	stdout, err := executeShowCommand("test", "--file", path)
	require.NoError(t, err)
	require.Contains(t, stdout, "Task:        test")
	require.Contains(t, stdout, "Depends on:")
	require.Contains(t, stdout, "build (defaults)")
}

func TestShowCommandJSONOutput(t *testing.T) {
	path := writeTestRecipe(t)

	stdout, err := executeShowCommand("build", "--file", path, "--json")
	require.NoError(t, err)

	var payload showJSONTask
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	require.Equal(t, "build", payload.Name)
	require.Equal(t, "compile the project", payload.Description)
}

func TestShowCommandUnknownTaskFails(t *testing.T) {
	path := writeTestRecipe(t)

	_, err := executeShowCommand("missing", "--file", path)
	require.Error(t, err)
}

func executeShowCommand(args ...string) (string, error) {
	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"show"}, args...))

	err := root.Execute()
	return buf.String(), err
}
