package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
)

// loadRecipe resolves the recipe a command should operate on: an
// explicit --file path when given, otherwise Discover's ancestor walk
// from the current working directory.
func loadRecipe(ctx context.Context, fs platform.FileSystem, env platform.Environment, spawner platform.ProcessSpawner, filePath string, opts recipe.ParseOptions) (*recipe.Recipe, error) {
	if filePath != "" {
		return recipe.ParseRecipeFile(ctx, fs, env, spawner, filePath, opts)
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return recipe.ParseRecipe(ctx, fs, env, spawner, wd, opts)
}

func parseOutputMode(raw string) (recipe.TaskOutputMode, error) {
	if raw == "" {
		return "", nil
	}

	mode := recipe.TaskOutputMode(raw)
	switch mode {
	case recipe.TaskOutputAll, recipe.TaskOutputOut, recipe.TaskOutputErr, recipe.TaskOutputOnErr, recipe.TaskOutputNone:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown output mode %q", raw)
	}
}
