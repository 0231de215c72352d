package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
)

type listOptions struct {
	file       string
	jsonOutput bool
}

func newListCmd(root *rootFlags) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the recipe's non-private tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Path to an explicit recipe file, bypassing discovery")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func runList(cmd *cobra.Command, opts *listOptions) error {
	rec, err := loadRecipe(cmd.Context(), platform.OSFileSystem{}, platform.OSEnvironment{}, platform.OSProcessSpawner{}, opts.file, recipe.ParseOptions{ReadOnly: true})
	if err != nil {
		return newCommandError("list", "loading the recipe", err, "Run 'tt init' to create a recipe, or pass --file to point at one explicitly.")
	}

	names := make([]string, 0, rec.Tasks.Len())
	for _, name := range rec.Tasks.Keys() {
		task, ok := rec.Tasks.Get(name)
		if !ok || task.Private {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if opts.jsonOutput {
		return renderListJSON(cmd, rec, names)
	}
	return renderListTable(cmd, rec, names)
}

type listJSONTask struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Runner      string `json:"runner"`
}

func renderListJSON(cmd *cobra.Command, rec *recipe.Recipe, names []string) error {
	payload := make([]listJSONTask, 0, len(names))
	for _, name := range names {
		task, _ := rec.Tasks.Get(name)
		payload = append(payload, listJSONTask{Name: task.Name, Description: task.Description, Runner: task.Runner})
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func renderListTable(cmd *cobra.Command, rec *recipe.Recipe, names []string) error {
	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tasks declared in this recipe.")
		return nil
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "TASK\tRUNNER\tDESCRIPTION")

	for _, name := range names {
		task, _ := rec.Tasks.Get(name)
		fmt.Fprintf(writer, "%s\t%s\t%s\n", task.Name, valueOrFallback(task.Runner, "(default)"), valueOrFallback(task.Description, "(none)"))
	}

	return writer.Flush()
}

func valueOrFallback(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
