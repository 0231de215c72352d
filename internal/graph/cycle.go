package graph

import (
	"sort"

	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

// cycleAmong is the topological-sort fallback: expander.resolve detects and
// reports cycles as soon as the DFS revisits a node already on the
// walk's stack, so this only fires if a cycle somehow survives that
// check. It reports the unresolved node set rather than a precise
// ring, since by this point the stack context that identified the
// exact loop is gone.
func cycleAmong(pending map[string]bool) error {
	ring := make([]string, 0, len(pending))
	for id := range pending {
		ring = append(ring, id)
	}
	sort.Strings(ring)
	return tterrors.NewCycleError("DependencyCycle", ring)
}
