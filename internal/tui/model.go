// Package tui renders the live progress of a `tt run` invocation,
// generalizing the teacher's per-step dashboard from provisioning
// steps to the sequential Execution Driver's per-node run/skip events.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tasktree-dev/tasktree/internal/model"
)

// NodeStartMsg indicates the driver has begun running a node.
type NodeStartMsg struct {
	ID   string
	Time time.Time
}

// NodeDoneMsg reports that a node finished, succeeded, or was skipped
// because the Freshness Engine classified it as already up to date.
type NodeDoneMsg struct {
	Result model.NodeResult
}

type tickMsg struct{}

// Model is the Bubbletea state for one `tt run` invocation's progress
// view.
type Model struct {
	taskName       string
	nodes          map[string]model.NodeResult
	order          []string
	total          int
	completed      int
	finished       bool
	cancelled      bool
	nonInteractive bool
}

// NewModel constructs a progress model for the given task, seeding
// every planned node as pending so the node list and progress bar
// have a stable shape before the first NodeStartMsg arrives.
func NewModel(taskName string, nodeIDs []string, nonInteractive bool) Model {
	m := Model{
		taskName:       taskName,
		nodes:          make(map[string]model.NodeResult),
		order:          make([]string, 0, len(nodeIDs)),
		nonInteractive: nonInteractive,
	}

	for _, id := range nodeIDs {
		m.ensureNode(id)
	}

	return m
}

// Init starts the Bubbletea program's render loop.
func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

// TotalNodes returns the number of nodes tracked by the model.
func (m Model) TotalNodes() int {
	return m.total
}

// CompletedNodes returns the number of nodes that reached a terminal
// status (succeeded, failed, or were classified fresh).
func (m Model) CompletedNodes() int {
	return m.completed
}

// IsFinished reports whether the invocation has reached a terminal
// state.
func (m Model) IsFinished() bool {
	return m.finished
}

func (m *Model) ensureNode(id string) {
	if id == "" {
		return
	}
	if _, exists := m.nodes[id]; !exists {
		m.nodes[id] = model.NodeResult{NodeID: id, Status: model.StatusPending}
		m.order = append(m.order, id)
		m.total++
	}
}

func (m *Model) markFinishedIfComplete() {
	if m.total > 0 && m.completed >= m.total {
		m.finished = true
	}
}

func isTerminal(status string) bool {
	return status == model.StatusSuccess || status == model.StatusFailed || status == model.StatusFresh
}
