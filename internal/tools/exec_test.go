package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBashExecutorCapturesStdout(t *testing.T) {
	reg, ec := newTestRegistry(t)

	res := reg.Execute(context.Background(), toolCall("bash", map[string]any{
		"command": "echo hello",
	}), ec)
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "hello")
	assert.Equal(t, 0, res.Data["exitCode"])
}

func TestBashExecutorReportsNonZeroExit(t *testing.T) {
	reg, ec := newTestRegistry(t)

	res := reg.Execute(context.Background(), toolCall("bash", map[string]any{
		"command": "exit 3",
	}), ec)
	require.True(t, res.Success)
	assert.Equal(t, 3, res.Data["exitCode"])
}

func TestBashExecutorRunsInWorkspaceCwd(t *testing.T) {
	reg, ec := newTestRegistry(t)

	res := reg.Execute(context.Background(), toolCall("bash", map[string]any{
		"command": "pwd",
	}), ec)
	require.True(t, res.Success)
	assert.Contains(t, res.Message, ec.Workspace)
}

func TestBashExecutorRejectsEmptyCommand(t *testing.T) {
	reg, ec := newTestRegistry(t)

	res := reg.Execute(context.Background(), toolCall("bash", map[string]any{"command": "  "}), ec)
	assert.False(t, res.Success)
}

func TestBashExecutorTimesOut(t *testing.T) {
	reg, ec := newTestRegistry(t)

	res := reg.Execute(context.Background(), toolCall("bash", map[string]any{
		"command":         "sleep 2",
		"timeout_seconds": float64(1),
	}), ec)
	require.True(t, res.Success)
	assert.Equal(t, true, res.Data["timedOut"])
}
