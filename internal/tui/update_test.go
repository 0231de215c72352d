package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/tasktree-dev/tasktree/internal/model"
)

func TestUpdateHandlesNodeStart(t *testing.T) {
	m := NewModel("build", []string{"compile"}, false)
	updated, _ := m.Update(NodeStartMsg{ID: "compile", Time: time.Now()})
	m = updated.(Model)
	require.Equal(t, model.StatusRunning, m.nodes["compile"].Status)
}

func TestUpdateHandlesNodeCompletion(t *testing.T) {
	m := NewModel("build", []string{"compile"}, false)
	res := model.NodeResult{NodeID: "compile", Status: model.StatusSuccess}
	updated, _ := m.Update(NodeDoneMsg{Result: res})
	m = updated.(Model)
	require.Equal(t, res.Status, m.nodes["compile"].Status)
	require.Equal(t, 1, m.completed)
}

func TestUpdateHandlesNodeFailureMarksFinished(t *testing.T) {
	m := NewModel("build", []string{"compile"}, false)
	res := model.NodeResult{NodeID: "compile", Status: model.StatusFailed}
	updated, _ := m.Update(NodeDoneMsg{Result: res})
	m = updated.(Model)
	require.True(t, m.finished)
}

func TestUpdateHandlesTeaMessages(t *testing.T) {
	m := NewModel("build", nil, false)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.Nil(t, cmd)
	m = updated.(Model)
	require.True(t, m.cancelled)
}
