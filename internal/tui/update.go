package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tasktree-dev/tasktree/internal/model"
)

// Update handles Bubbletea messages and updates model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, nil
	case NodeStartMsg:
		m.ensureNode(msg.ID)
		n := m.nodes[msg.ID]
		n.Status = model.StatusRunning
		m.nodes[msg.ID] = n
		return m, nil
	case NodeDoneMsg:
		id := msg.Result.NodeID
		if id == "" {
			return m, nil
		}
		m.ensureNode(id)
		existing := m.nodes[id]
		previouslyDone := isTerminal(existing.Status)
		m.nodes[id] = msg.Result
		if !previouslyDone {
			m.completed++
			m.markFinishedIfComplete()
		}
		if msg.Result.Status == model.StatusFailed {
			m.finished = true
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.cancelled = true
			m.finished = true
			return m, nil
		}
	case tea.QuitMsg:
		m.finished = true
		return m, nil
	}

	return m, nil
}
