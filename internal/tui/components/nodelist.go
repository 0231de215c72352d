package components

import (
	"github.com/tasktree-dev/tasktree/internal/model"
)

// NodeEntry represents a single graph node for rendering.
type NodeEntry struct {
	ID     string
	Result model.NodeResult
}

// NodeList renders a list of nodes with their current run status.
type NodeList struct {
	entries []NodeEntry
}

// NewNodeList constructs a node list component.
func NewNodeList(order []string, nodes map[string]model.NodeResult) NodeList {
	entries := make([]NodeEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, NodeEntry{ID: id, Result: nodes[id]})
	}
	return NodeList{entries: entries}
}

// Entries returns the ordered node entries.
func (l NodeList) Entries() []NodeEntry {
	clone := make([]NodeEntry, len(l.entries))
	copy(clone, l.entries)
	return clone
}

// CountByStatus tallies entries by their NodeResult.Status, so the
// view can report how many nodes the Freshness Engine skipped
// alongside how many the Execution Driver actually ran.
func (l NodeList) CountByStatus() map[string]int {
	counts := make(map[string]int)
	for _, e := range l.entries {
		counts[e.Result.Status]++
	}
	return counts
}

// FreshCount reports how many entries the Freshness Engine classified
// as already up to date, the number `tt run` never handed the
// Execution Driver.
func (l NodeList) FreshCount() int {
	return l.CountByStatus()[model.StatusFresh]
}
