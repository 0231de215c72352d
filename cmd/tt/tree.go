package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tasktree-dev/tasktree/internal/graph"
	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
)

var (
	treeTaskStyle   = lipgloss.NewStyle().Bold(true)
	treeRunnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

type treeOptions struct {
	file string
}

func newTreeCmd(root *rootFlags) *cobra.Command {
	opts := &treeOptions{}

	cmd := &cobra.Command{
		Use:   "tree <task>",
		Short: "Print a task's dependency tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Path to an explicit recipe file, bypassing discovery")

	return cmd
}

// runTree renders the dependency tree with no bubbletea event loop:
// unlike `tt run`, this is a static, read-only view and has no
// progress to animate.
func runTree(cmd *cobra.Command, taskName string, opts *treeOptions) error {
	fs := platform.OSFileSystem{}
	env := platform.OSEnvironment{}
	spawner := platform.OSProcessSpawner{}

	rec, err := loadRecipe(cmd.Context(), fs, env, spawner, opts.file, recipe.ParseOptions{ReadOnly: true})
	if err != nil {
		return newCommandError("tree", "loading the recipe", err, "Run 'tt init' to create a recipe, or pass --file to point at one explicitly.")
	}

	g, err := graph.Build(rec, taskName, recipe.DepInvocation{Mode: recipe.DepDefaults}, platform.SystemClock{}, env, graph.BuildOptions{})
	if err != nil {
		return newCommandError("tree", fmt.Sprintf("building the dependency graph for %q", taskName), err, "Tasks with required arguments that have no default cannot be rendered without a concrete invocation.")
	}

	root := findRootNode(g, taskName)
	if root == nil {
		return newCommandError("tree", fmt.Sprintf("locating %q in its own graph", taskName), fmt.Errorf("node not found"), "This should not happen; please report it.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", treeTaskStyle.Render(root.Task.Name), treeRunnerStyle.Render("("+root.Runner+")"))
	renderTreeChildren(&b, root, "", map[string]bool{root.ID: true})
	fmt.Fprint(cmd.OutOrStdout(), b.String())
	return nil
}

func findRootNode(g *graph.Graph, taskName string) *graph.Node {
	for _, n := range g.Order {
		if n.Task.Name == taskName {
			return n
		}
	}
	return nil
}

// renderTreeChildren prints n's dependencies with standard box-drawing
// tree connectors. A node already printed once (a diamond dependency)
// is still listed at every call site, but its own children are not
// repeated beneath it a second time.
func renderTreeChildren(b *strings.Builder, n *graph.Node, prefix string, visited map[string]bool) {
	deps := sortedDeps(n.DependsOn)

	for i, dep := range deps {
		last := i == len(deps)-1
		connector := "├── "
		childPrefix := prefix + "│   "
		if last {
			connector = "└── "
			childPrefix = prefix + "    "
		}

		fmt.Fprintf(b, "%s%s%s %s\n", prefix, connector, treeTaskStyle.Render(dep.Task.Name), treeRunnerStyle.Render("("+dep.Runner+")"))

		if visited[dep.ID] {
			continue
		}
		visited[dep.ID] = true
		renderTreeChildren(b, dep, childPrefix, visited)
	}
}

func sortedDeps(nodes []*graph.Node) []*graph.Node {
	out := append([]*graph.Node(nil), nodes...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Task.Name < out[j].Task.Name })
	return out
}
