package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNonVerboseEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf})
	logger.Info("hello", "key", "value")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "hello", decoded["msg"])
	assert.Equal(t, "value", decoded["key"])
}

func TestNewNonVerboseSuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf})
	logger.Debug("should not appear")
	assert.Empty(t, buf.String())
}

func TestNewVerboseEmitsTextAndDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Verbose: true, Output: &buf})
	logger.Debug("debugging", "step", 1)

	out := buf.String()
	assert.Contains(t, out, "debugging")
	assert.Contains(t, out, "step=1")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
}

func TestInitInstallsDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Output: &buf})
	slog.Info("via default")
	assert.Contains(t, buf.String(), "via default")
}
