package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestNodeResultCreation(t *testing.T) {
	t.Parallel()

	t.Run("creates node result with all fields", func(t *testing.T) {
		t.Parallel()
		now := time.Now()
		result := NodeResult{
			NodeID:    "compile",
			Status:    StatusSuccess,
			Message:   "completed",
			Duration:  time.Second,
			Timestamp: now,
		}

		require.Equal(t, "compile", result.NodeID)
		require.Equal(t, StatusSuccess, result.Status)
		require.Equal(t, "completed", result.Message)
		require.Equal(t, time.Second, result.Duration)
		require.Equal(t, now, result.Timestamp)
	})

	t.Run("creates node result with error", func(t *testing.T) {
		t.Parallel()
		err := &testError{msg: "exit code 1"}
		result := NodeResult{
			NodeID: "package",
			Status: StatusFailed,
			Error:  err,
		}

		require.Equal(t, "package", result.NodeID)
		require.Equal(t, StatusFailed, result.Status)
		require.Equal(t, err, result.Error)
	})
}

func TestStatusConstants(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pending", StatusPending)
	require.Equal(t, "running", StatusRunning)
	require.Equal(t, "success", StatusSuccess)
	require.Equal(t, "fresh", StatusFresh)
	require.Equal(t, "failed", StatusFailed)
}
