// Package config loads deskagent's YAML configuration file into a typed
// Config tree, following the same Load/applyDefaults/applyEnvOverrides
// shape the teacher's internal/config package uses: read the file, expand
// ${ENV} references, strict-decode into a struct, layer environment
// variable overrides on top, then fill in defaults for anything left
// unset.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the deskagent.yaml tree.
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	LLM      LLMConfig      `yaml:"llm"`
	Channels ChannelsConfig `yaml:"channels"`
	Tools    ToolsConfig    `yaml:"tools"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AgentConfig bounds the step loop's termination and timing behavior; it
// maps directly onto internal/core.Config.
type AgentConfig struct {
	MaxSteps         int           `yaml:"max_steps"`
	Interactive      bool          `yaml:"interactive"`
	WhitelistedApps  []string      `yaml:"whitelisted_apps"`
	StepDelay        time.Duration `yaml:"step_delay"`
	IdlePollInterval time.Duration `yaml:"idle_poll_interval"`
	Workspace        string        `yaml:"workspace"`
	DataDir          string        `yaml:"data_dir"`
}

// LLMConfig selects the active provider and holds per-provider credentials.
type LLMConfig struct {
	DefaultProvider string                      `yaml:"default_provider"`
	Model           string                      `yaml:"model"`
	MaxTokens       int                         `yaml:"max_tokens"`
	Providers       map[string]LLMProviderEntry `yaml:"providers"`
}

// LLMProviderEntry configures one named provider (anthropic, openai, ...).
type LLMProviderEntry struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Mode    string `yaml:"mode"`
}

// ChannelsConfig configures the side channels that feed and drain the
// agent: the overlay UI socket, the mail shim, and the notification
// watcher.
type ChannelsConfig struct {
	Overlay OverlayConfig `yaml:"overlay"`
	Mail    MailConfig    `yaml:"mail"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// OverlayConfig configures the websocket overlay server.
type OverlayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// MailConfig configures the mail channel shim.
type MailConfig struct {
	Enabled      bool   `yaml:"enabled"`
	PollSchedule string `yaml:"poll_schedule"`
	UIDStorePath string `yaml:"uid_store_path"`
	Address      string `yaml:"address"`
}

// NotifyConfig configures the OS notification watcher shim.
type NotifyConfig struct {
	Enabled     bool          `yaml:"enabled"`
	BinaryPath  string        `yaml:"binary_path"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// ToolsConfig configures the tool registry's shared behavior.
type ToolsConfig struct {
	ScreenshotDir  string        `yaml:"screenshot_dir"`
	BashTimeout    time.Duration `yaml:"bash_timeout"`
	TodoPath       string        `yaml:"todo_path"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
}

// LoggingConfig mirrors the teacher's LoggingConfig field-for-field.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path, expands ${ENV} references, strict-decodes it into a
// Config, applies environment variable overrides, then fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	applyAgentDefaults(&cfg.Agent)
	applyLLMDefaults(&cfg.LLM)
	applyChannelsDefaults(&cfg.Channels)
	applyToolsDefaults(&cfg.Tools)
	applyLoggingDefaults(&cfg.Logging)
}

func applyAgentDefaults(cfg *AgentConfig) {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 200
	}
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = 500 * time.Millisecond
	}
	if cfg.IdlePollInterval <= 0 {
		cfg.IdlePollInterval = time.Second
	}
	if cfg.Workspace == "" {
		cfg.Workspace = "."
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "anthropic"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]LLMProviderEntry)
	}
}

func applyChannelsDefaults(cfg *ChannelsConfig) {
	if cfg.Overlay.Addr == "" {
		cfg.Overlay.Addr = "127.0.0.1:19823"
	}
	if cfg.Mail.PollSchedule == "" {
		cfg.Mail.PollSchedule = "@every 30s"
	}
	if cfg.Mail.UIDStorePath == "" {
		cfg.Mail.UIDStorePath = "data/mail-uids.json"
	}
	if cfg.Notify.MinInterval <= 0 {
		cfg.Notify.MinInterval = 2 * time.Second
	}
}

func applyToolsDefaults(cfg *ToolsConfig) {
	if cfg.ScreenshotDir == "" {
		cfg.ScreenshotDir = "data/memory/screenshots"
	}
	if cfg.BashTimeout <= 0 {
		cfg.BashTimeout = 30 * time.Second
	}
	if cfg.TodoPath == "" {
		cfg.TodoPath = "data/TODOLIST.md"
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 150 * time.Millisecond
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

// applyEnvOverrides layers a handful of well-known environment variables
// on top of the decoded config, the same way the teacher's config package
// lets deploy-time env vars win over whatever shipped in the YAML file.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if value := strings.TrimSpace(os.Getenv("DESKAGENT_WORKSPACE")); value != "" {
		cfg.Agent.Workspace = value
	}
	if value := strings.TrimSpace(os.Getenv("DESKAGENT_LLM_PROVIDER")); value != "" {
		cfg.LLM.DefaultProvider = value
	}
	if value := strings.TrimSpace(os.Getenv("DESKAGENT_MAX_STEPS")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Agent.MaxSteps = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("DESKAGENT_OVERLAY_ADDR")); value != "" {
		cfg.Channels.Overlay.Addr = value
	}
	if value := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); value != "" {
		entry := cfg.LLM.Providers["anthropic"]
		entry.APIKey = value
		if cfg.LLM.Providers == nil {
			cfg.LLM.Providers = make(map[string]LLMProviderEntry)
		}
		cfg.LLM.Providers["anthropic"] = entry
	}
	if value := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); value != "" {
		entry := cfg.LLM.Providers["openai"]
		entry.APIKey = value
		if cfg.LLM.Providers == nil {
			cfg.LLM.Providers = make(map[string]LLMProviderEntry)
		}
		cfg.LLM.Providers["openai"] = entry
	}
}
