// Package config loads the application configuration from a TOML file,
// layered over defaults, with environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the application configuration.
type Config struct {
	MCP     MCPConfig     `toml:"mcp"`
	Backend BackendConfig `toml:"backend"`
	Budget  BudgetConfig  `toml:"budget"`
	Signals SignalsConfig `toml:"signals"`
	Log     LogConfig     `toml:"log"`
	Panel   PanelConfig   `toml:"panel"`
}

// MCPConfig configures the tool server subprocess.
type MCPConfig struct {
	Command              []string `toml:"command"`
	AwaitTimeoutSecs     int      `toml:"await_timeout_secs"`
	HandshakeTimeoutSecs int      `toml:"handshake_timeout_secs"`
	ShutdownGraceSecs    int      `toml:"shutdown_grace_secs"`
}

// AwaitTimeout returns the per-call response timeout.
func (c MCPConfig) AwaitTimeout() time.Duration {
	return time.Duration(c.AwaitTimeoutSecs) * time.Second
}

// HandshakeTimeout returns the handshake window. It is configured
// independently of the await timeout even though both default to an hour.
func (c MCPConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutSecs) * time.Second
}

// ShutdownGrace returns the wait between SIGTERM and SIGKILL.
func (c MCPConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSecs) * time.Second
}

// BackendConfig configures the text-generation backend.
type BackendConfig struct {
	URL            string `toml:"url"`
	Model          string `toml:"model"`
	MaxAttempts    int    `toml:"max_attempts"`
	RetryDelaySecs int    `toml:"retry_delay_secs"`
	TimeoutSecs    int    `toml:"timeout_secs"`
}

// RetryDelay returns the fixed delay between backend attempts.
func (c BackendConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySecs) * time.Second
}

// Timeout returns the per-request backend timeout.
func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// BudgetConfig configures the prompt token budget.
type BudgetConfig struct {
	TokenCeiling int    `toml:"token_ceiling"`
	ToolHints    string `toml:"tool_hints"`
}

// SignalsConfig configures the control signal and state file paths.
type SignalsConfig struct {
	GoalFile       string `toml:"goal_file"`
	PauseFile      string `toml:"pause_file"`
	CorrectionFile string `toml:"correction_file"`
	HistoryFile    string `toml:"history_file"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
	File  string `toml:"file"`  // empty disables file logging
}

// PanelConfig configures the web control panel.
type PanelConfig struct {
	Addr         string   `toml:"addr"`
	AgentCommand []string `toml:"agent_command"`
	PIDFile      string   `toml:"pid_file"`
}

const defaultToolHints = `Available tools:
1. "messages" tool with method "get_unread_messages" - fetch unread messages
2. "messages" tool with method "get_conversations" - list open dialogs
3. "messages" tool with method "get_history" - message history (peer_id, count=10)
4. "messages" tool with method "send_message" - send a message (peer_id, message)
5. "messages" tool with method "await_any_event" - wait for new messages (duration_s=60)`

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MCP: MCPConfig{
			AwaitTimeoutSecs:     3600,
			HandshakeTimeoutSecs: 3600,
			ShutdownGraceSecs:    5,
		},
		Backend: BackendConfig{
			URL:            "http://localhost:11434/api/generate",
			Model:          "gemma3:4b",
			MaxAttempts:    3,
			RetryDelaySecs: 2,
			TimeoutSecs:    60,
		},
		Budget: BudgetConfig{
			TokenCeiling: 5000,
			ToolHints:    defaultToolHints,
		},
		Signals: SignalsConfig{
			GoalFile:       "goal.txt",
			PauseFile:      "paused.flag",
			CorrectionFile: "correction.txt",
			HistoryFile:    "history.json",
		},
		Log: LogConfig{
			Level: "info",
			File:  "agent.log",
		},
		Panel: PanelConfig{
			Addr:    ":5001",
			PIDFile: "agent.pid",
		},
	}
}

// Load reads configuration from path, merged over defaults. A missing file
// yields the defaults. Environment variables AGENT_BACKEND_URL and
// AGENT_BACKEND_MODEL override both.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if val := os.Getenv("AGENT_BACKEND_URL"); val != "" {
		cfg.Backend.URL = val
	}
	if val := os.Getenv("AGENT_BACKEND_MODEL"); val != "" {
		cfg.Backend.Model = val
	}

	return cfg, nil
}

// Save writes the configuration to path as TOML.
func (c *Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return f.Close()
}
