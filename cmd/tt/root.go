package main

import (
	"github.com/spf13/cobra"
)

// rootFlags carries the persistent flags every subcommand reads.
type rootFlags struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "tt",
		Short:         "Task Tree runs declarative, dependency-aware build and automation tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newListCmd(flags))
	cmd.AddCommand(newShowCmd(flags))
	cmd.AddCommand(newTreeCmd(flags))
	cmd.AddCommand(newInitCmd(flags))
	cmd.AddCommand(newCleanCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
