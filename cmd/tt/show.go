package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
)

type showOptions struct {
	file       string
	jsonOutput bool
}

func newShowCmd(root *rootFlags) *cobra.Command {
	opts := &showOptions{}

	cmd := &cobra.Command{
		Use:   "show <task>",
		Short: "Show a task's resolved definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Path to an explicit recipe file, bypassing discovery")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the task definition as JSON")

	return cmd
}

func runShow(cmd *cobra.Command, taskName string, opts *showOptions) error {
	if strings.TrimSpace(taskName) == "" {
		return newCommandError("show", "validating the task name", errors.New("task name cannot be empty"), "Provide the name of a task to inspect.")
	}

	rec, err := loadRecipe(cmd.Context(), platform.OSFileSystem{}, platform.OSEnvironment{}, platform.OSProcessSpawner{}, opts.file, recipe.ParseOptions{ReadOnly: true})
	if err != nil {
		return newCommandError("show", "loading the recipe", err, "Run 'tt init' to create a recipe, or pass --file to point at one explicitly.")
	}

	task, ok := rec.Tasks.Get(taskName)
	if !ok {
		return newCommandError("show", fmt.Sprintf("looking up task %q", taskName), fmt.Errorf("no such task"), "Run 'tt list' to view the recipe's tasks.")
	}

	if opts.jsonOutput {
		return renderShowJSON(cmd, task)
	}
	return renderShowTable(cmd, task)
}

type showJSONArg struct {
	Name     string   `json:"name"`
	Exported bool     `json:"exported"`
	Type     string   `json:"type,omitempty"`
	Default  *string  `json:"default,omitempty"`
	Choices  []string `json:"choices,omitempty"`
}

type showJSONDep struct {
	TaskName   string            `json:"task"`
	Mode       string            `json:"mode"`
	Positional []string          `json:"positional,omitempty"`
	Named      map[string]string `json:"named,omitempty"`
}

type showJSONTask struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Runner      string        `json:"runner"`
	WorkingDir  string        `json:"working_dir,omitempty"`
	Private     bool          `json:"private"`
	Args        []showJSONArg `json:"args,omitempty"`
	Deps        []showJSONDep `json:"deps,omitempty"`
	Inputs      []string      `json:"inputs,omitempty"`
	Outputs     []string      `json:"outputs,omitempty"`
	Cmd         string        `json:"cmd"`
}

func renderShowJSON(cmd *cobra.Command, task *recipe.Task) error {
	payload := showJSONTask{
		Name:        task.Name,
		Description: task.Description,
		Runner:      task.Runner,
		WorkingDir:  task.WorkingDir,
		Private:     task.Private,
		Cmd:         task.Cmd,
	}

	for _, a := range task.Args {
		payload.Args = append(payload.Args, showJSONArg{
			Name:     a.Name,
			Exported: a.Exported,
			Type:     string(a.Type),
			Default:  a.Default,
			Choices:  a.Choices,
		})
	}
	for _, d := range task.Deps {
		payload.Deps = append(payload.Deps, showJSONDep{TaskName: d.TaskName, Mode: string(d.Mode), Positional: d.Positional, Named: d.Named})
	}
	for _, in := range task.Inputs {
		payload.Inputs = append(payload.Inputs, ioEntryString(in))
	}
	for _, out := range task.Outputs {
		payload.Outputs = append(payload.Outputs, ioEntryString(out))
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func renderShowTable(cmd *cobra.Command, task *recipe.Task) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Task:        %s\n", task.Name)
	fmt.Fprintf(w, "Description: %s\n", valueOrFallback(task.Description, "(none)"))
	fmt.Fprintf(w, "Runner:      %s\n", valueOrFallback(task.Runner, "(default)"))
	fmt.Fprintf(w, "Private:     %t\n", task.Private)
	if task.WorkingDir != "" {
		fmt.Fprintf(w, "Working dir: %s\n", task.WorkingDir)
	}

	if len(task.Args) > 0 {
		fmt.Fprintln(w, "\nArgs:")
		for _, a := range task.Args {
			fmt.Fprintf(w, "  %s %s\n", formatArgName(a), formatArgDefault(a))
		}
	}

	if len(task.Deps) > 0 {
		fmt.Fprintln(w, "\nDepends on:")
		for _, d := range task.Deps {
			fmt.Fprintf(w, "  %s (%s)\n", d.TaskName, d.Mode)
		}
	}

	if len(task.Inputs) > 0 {
		fmt.Fprintln(w, "\nInputs:")
		for _, in := range task.Inputs {
			fmt.Fprintf(w, "  %s\n", ioEntryString(in))
		}
	}

	if len(task.Outputs) > 0 {
		fmt.Fprintln(w, "\nOutputs:")
		for _, out := range task.Outputs {
			fmt.Fprintf(w, "  %s\n", ioEntryString(out))
		}
	}

	fmt.Fprintf(w, "\nCmd:\n  %s\n", strings.ReplaceAll(task.Cmd, "\n", "\n  "))
	return nil
}

func formatArgName(a *recipe.ArgSpec) string {
	name := a.Name
	if a.Exported {
		name = "$" + name
	}
	if a.TypeSet {
		name = fmt.Sprintf("%s:%s", name, a.Type)
	}
	return name
}

func formatArgDefault(a *recipe.ArgSpec) string {
	if a.Default == nil {
		return "(required)"
	}
	return fmt.Sprintf("= %q", *a.Default)
}

func ioEntryString(e recipe.IOEntry) string {
	if e.Name == "" {
		return e.Glob
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Glob)
}
