package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "agent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434/api/generate", cfg.Backend.URL)
	assert.Equal(t, "gemma3:4b", cfg.Backend.Model)
	assert.Equal(t, 5000, cfg.Budget.TokenCeiling)
	assert.Equal(t, time.Hour, cfg.MCP.AwaitTimeout())
	assert.Equal(t, time.Hour, cfg.MCP.HandshakeTimeout())
	assert.Equal(t, 5*time.Second, cfg.MCP.ShutdownGrace())
	assert.Equal(t, "history.json", cfg.Signals.HistoryFile)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[mcp]
command = ["mcp", "run", "server.py"]
await_timeout_secs = 30

[backend]
model = "gemma3:12b"

[budget]
token_ceiling = 8000
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"mcp", "run", "server.py"}, cfg.MCP.Command)
	assert.Equal(t, 30*time.Second, cfg.MCP.AwaitTimeout())
	assert.Equal(t, "gemma3:12b", cfg.Backend.Model)
	assert.Equal(t, 8000, cfg.Budget.TokenCeiling)
	// Untouched sections keep their defaults.
	assert.Equal(t, "http://localhost:11434/api/generate", cfg.Backend.URL)
	assert.Equal(t, "goal.txt", cfg.Signals.GoalFile)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[backend]
url = "http://filehost:11434/api/generate"
model = "from-file"
`), 0644))

	t.Setenv("AGENT_BACKEND_URL", "http://envhost:11434/api/generate")
	t.Setenv("AGENT_BACKEND_MODEL", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://envhost:11434/api/generate", cfg.Backend.URL)
	assert.Equal(t, "from-env", cfg.Backend.Model)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.toml")

	cfg := Default()
	cfg.MCP.Command = []string{"mcp", "run", "server.py"}
	cfg.Backend.Model = "gemma3:12b"
	cfg.Budget.TokenCeiling = 8000
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadRejectsInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[backend`), 0644))

	_, err := Load(path)
	require.Error(t, err)
}
