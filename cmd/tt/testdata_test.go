package main

import (
	"os"
	"path/filepath"
	"testing"
)

const testRecipeYAML = `
tasks:
  build:
    description: "compile the project"
    cmd: "echo building"
  test:
    description: "run the test suite"
    cmd: "echo testing"
    deps:
      - build
  internal-helper:
    description: "not meant to be run directly"
    private: true
    cmd: "echo helper"
`

// writeTestRecipe writes a small, valid recipe to a temp directory and
// returns its path, for commands exercised via --file rather than
// Discover's ancestor walk.
func writeTestRecipe(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tasktree.yaml")
	if err := os.WriteFile(path, []byte(testRecipeYAML), 0o644); err != nil {
		t.Fatalf("writing test recipe: %v", err)
	}
	return path
}
