package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasktree-dev/tasktree/internal/freshness"
	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
)

type cleanOptions struct {
	file string
}

func newCleanCmd(root *rootFlags) *cobra.Command {
	opts := &cleanOptions{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the project's freshness state file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Path to an explicit recipe file, bypassing discovery")

	return cmd
}

func runClean(cmd *cobra.Command, opts *cleanOptions) error {
	fs := platform.OSFileSystem{}
	env := platform.OSEnvironment{}
	spawner := platform.OSProcessSpawner{}

	rec, err := loadRecipe(cmd.Context(), fs, env, spawner, opts.file, recipe.ParseOptions{ReadOnly: true})
	if err != nil {
		return newCommandError("clean", "loading the recipe", err, "Run 'tt init' to create a recipe, or pass --file to point at one explicitly.")
	}

	path := freshness.DefaultStatePath(rec.ProjectRoot, env)

	if err := fs.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(cmd.OutOrStdout(), "No state file at %s\n", path)
			return nil
		}
		return newCommandError("clean", fmt.Sprintf("removing %s", path), err, "Check file permissions and try again.")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", path)
	return nil
}
