package driver

import (
	"bytes"
	"io"
	"os"

	"github.com/tasktree-dev/tasktree/internal/recipe"
)

// outputWriters builds the stdout/stderr writers for one spawn
// according to a task's task_output mode, generalizing
// internalexec.RunStreaming's "always tee both to the parent process"
// behavior into the five modes spec.md §4.5 step 6 names. The
// returned flush function must be called with whether the task
// ultimately failed; for on-err it is what actually emits the
// buffered stderr.
func outputWriters(mode recipe.TaskOutputMode) (stdout io.Writer, stderr io.Writer, flush func(failed bool)) {
	switch mode {
	case recipe.TaskOutputOut:
		return os.Stdout, io.Discard, func(bool) {}
	case recipe.TaskOutputErr:
		return io.Discard, os.Stderr, func(bool) {}
	case recipe.TaskOutputNone:
		return io.Discard, io.Discard, func(bool) {}
	case recipe.TaskOutputOnErr:
		var buf bytes.Buffer
		return io.Discard, &buf, func(failed bool) {
			if failed {
				os.Stderr.Write(buf.Bytes())
			}
		}
	default: // TaskOutputAll and unset
		return os.Stdout, os.Stderr, func(bool) {}
	}
}
