package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deskagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaultsForMinimalFile(t *testing.T) {
	path := writeConfig(t, "agent:\n  workspace: /tmp/ws\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ws", cfg.Agent.Workspace)
	assert.Equal(t, 200, cfg.Agent.MaxSteps)
	assert.Equal(t, 500*time.Millisecond, cfg.Agent.StepDelay)
	assert.Equal(t, "anthropic", cfg.LLM.DefaultProvider)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, "127.0.0.1:19823", cfg.Channels.Overlay.Addr)
	assert.Equal(t, "@every 30s", cfg.Channels.Mail.PollSchedule)
	assert.Equal(t, "data/mail-uids.json", cfg.Channels.Mail.UIDStorePath)
	assert.Equal(t, 2*time.Second, cfg.Channels.Notify.MinInterval)
	assert.Equal(t, "data/memory/screenshots", cfg.Tools.ScreenshotDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("DESKAGENT_TEST_WORKSPACE", "/opt/ws")
	path := writeConfig(t, "agent:\n  workspace: ${DESKAGENT_TEST_WORKSPACE}\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/ws", cfg.Agent.Workspace)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "agent:\n  nonsense_field: true\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "agent:\n  max_steps: 10\n---\nagent:\n  max_steps: 20\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	t.Setenv("DESKAGENT_MAX_STEPS", "42")
	t.Setenv("DESKAGENT_LLM_PROVIDER", "openai")
	path := writeConfig(t, "agent:\n  max_steps: 10\nllm:\n  default_provider: anthropic\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Agent.MaxSteps)
	assert.Equal(t, "openai", cfg.LLM.DefaultProvider)
}

func TestEnvOverridesSeedProviderAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-key")
	path := writeConfig(t, "agent:\n  workspace: .\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-key", cfg.LLM.Providers["anthropic"].APIKey)
}
