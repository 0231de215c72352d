package driver

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tasktree-dev/tasktree/internal/graph"
	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
)

// materializeScript writes cmd, with the runner's preamble prepended,
// to a temporary executable script file in the materialized language
// of the runner's shell: a POSIX shell script, or on Windows a .ps1
// file for a PowerShell shell and a .bat file otherwise (spec.md §4.5
// step 2). The returned cleanup removes
// the temp file once the node has finished running.
func materializeScript(fs platform.FileSystem, n *graph.Node, runner *recipe.Runner, cmd string) (string, func(), error) {
	ext := ".sh"
	preamble := ""
	shell := "/bin/sh"
	if runner != nil && runner.Kind == recipe.RunnerShell && runner.Shell != nil {
		preamble = runner.Shell.Preamble
		if runner.Shell.Shell != "" {
			shell = runner.Shell.Shell
		}
		if runtime.GOOS == "windows" && strings.Contains(strings.ToLower(runner.Shell.Shell), "powershell") {
			ext = ".ps1"
		} else if runtime.GOOS == "windows" {
			ext = ".bat"
		}
	} else if runtime.GOOS == "windows" {
		ext = ".bat"
	}

	var body strings.Builder
	if ext == ".sh" {
		body.WriteString("#!" + shell + "\n")
	}
	if preamble != "" {
		body.WriteString(preamble)
		body.WriteString("\n")
	}
	body.WriteString(cmd)
	body.WriteString("\n")

	path := tempScriptPath(n.Task.Name, ext)
	if err := fs.WriteFile(path, []byte(body.String()), 0o755); err != nil {
		return "", func() {}, err
	}

	return path, func() { _ = fs.Remove(path) }, nil
}

func tempScriptPath(taskName, ext string) string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	name := "tasktree-" + sanitizeName(taskName) + "-" + hex.EncodeToString(buf) + ext
	return filepath.Join(os.TempDir(), name)
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
