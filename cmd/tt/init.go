package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const initSkeleton = `# tasktree.yaml
#
# variables:
#   name: value
#
# runners:
#   shell:
#     shell: bash
#
# tasks:
#   build:
#     description: ""
#     cmd: |
#       echo "replace me"
tasks:
  build:
    description: "describe what this task does"
    cmd: |
      echo "replace me"
`

type initOptions struct {
	force bool
}

func newInitCmd(root *rootFlags) *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a blank recipe skeleton in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing tasktree.yaml")

	return cmd
}

func runInit(cmd *cobra.Command, opts *initOptions) error {
	wd, err := os.Getwd()
	if err != nil {
		return newCommandError("init", "determining the working directory", err, "Check that the current directory is accessible.")
	}

	path := filepath.Join(wd, "tasktree.yaml")

	if !opts.force {
		if _, err := os.Stat(path); err == nil {
			return newCommandError("init", "writing tasktree.yaml", fmt.Errorf("%s already exists", path), "Pass --force to overwrite it.")
		}
	}

	if err := os.WriteFile(path, []byte(initSkeleton), 0o644); err != nil {
		return newCommandError("init", "writing tasktree.yaml", err, "Check directory permissions and try again.")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
