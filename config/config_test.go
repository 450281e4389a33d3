package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/useragents/logging"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
	assert.Equal(t, 443, cfg.Server.Port)
	assert.Equal(t, "server.cert", cfg.Server.TLSCertFile)
	assert.Equal(t, "server.key", cfg.Server.TLSKeyFile)
	assert.Equal(t, "/useragent/src/custom_agents", cfg.Plugins.Dir)
	assert.Equal(t, 25, cfg.Runner.MaxModelCalls)
	assert.Equal(t, 10*time.Second, cfg.Plugins.LoadTimeout)
	assert.True(t, cfg.TLSEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_TOML(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	path := writeFile(t, "useragents.toml", `
[server]
address = "127.0.0.1"
port = 8443
strict_status = true
shutdown_timeout = "2s"

[plugins]
dir = "./agents"
reject_duplicates = true
builtin = ["echo"]

[runner]
max_concurrent = 8
timeout = "30s"

[logging]
level = "debug"
format = "text"

[models.openai]
provider = "openai"
model = "gpt-4o-mini"
api_key = "${TEST_OPENAI_KEY}"
temperature = 0.2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Address)
	assert.Equal(t, 8443, cfg.Server.Port)
	assert.True(t, cfg.Server.StrictStatus)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./agents", cfg.Plugins.Dir)
	assert.True(t, cfg.Plugins.RejectDuplicates)
	assert.Equal(t, []string{"echo"}, cfg.Plugins.Builtin)
	assert.Equal(t, 8, cfg.Runner.MaxConcurrent)
	assert.Equal(t, 30*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, 25, cfg.Runner.MaxModelCalls)

	require.Contains(t, cfg.Models, "openai")
	m := cfg.Models["openai"]
	assert.Equal(t, "sk-test", m.APIKey)
	require.NotNil(t, m.Temperature)
	assert.InDelta(t, 0.2, *m.Temperature, 1e-9)

	lc := cfg.LoggerConfig()
	assert.Equal(t, logging.LogLevelDebug, lc.Level)
	assert.Equal(t, "text", lc.Format)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "useragents.yaml", `
server:
  port: 8080
  plain_http: true
models:
  claude:
    provider: anthropic
    model: claude-3-5-haiku-latest
    api_key: ${TEST_UNSET_KEY}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.TLSEnabled())
	assert.Equal(t, []string{"claude"}, cfg.ModelNames())
	assert.Empty(t, cfg.Models["claude"].APIKey)
}

func TestLoad_EmptyYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, 443, cfg.Server.Port)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		errMsg  string
	}{
		{"unsupported extension", "c.json", `{}`, "unsupported config format"},
		{"bad toml", "c.toml", `[server`, "parsing toml"},
		{"unknown toml key", "c.toml", "[server]\nprot = 1\n", "unknown keys"},
		{"unknown yaml key", "c.yaml", "server:\n  prot: 1\n", "parsing yaml"},
		{"bad duration", "c.toml", "[runner]\ntimeout = \"soon\"\n", "runner.timeout"},
		{"bad port", "c.toml", "[server]\nport = 70000\n", "server.port"},
		{"bad level", "c.toml", "[logging]\nlevel = \"loud\"\n", "logging.level"},
		{"bad format", "c.toml", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"bad provider", "c.toml", "[models.x]\nprovider = \"gemini\"\n", "unknown provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}
