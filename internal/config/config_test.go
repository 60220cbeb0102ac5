package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nubilum/nubilum/internal/config"
	"github.com/nubilum/nubilum/jsonv"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nubilum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 7000
  strategy: comments
  max_message_bytes: 65536
  idle_timeout: 30s

client:
  address: "10.0.0.1:7000"

database:
  driver: memory

logging:
  level: debug
  format: console
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Address())
	assert.Equal(t, "comments", cfg.Server.Strategy)
	assert.Equal(t, 65536, cfg.Server.MaxMessageBytes)
	assert.Equal(t, 30*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, "10.0.0.1:7000", cfg.Client.Address)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	st, err := config.ParseStrategy(cfg.Server.Strategy)
	require.NoError(t, err)
	assert.Equal(t, jsonv.Comments, st)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:669", cfg.Server.Address())
	assert.Equal(t, "standard", cfg.Server.Strategy)
	assert.Equal(t, 4096, cfg.Server.ReadBufferBytes)
	assert.Equal(t, 1<<20, cfg.Server.MaxMessageBytes)
	assert.Equal(t, 1024, cfg.Server.DedupeSize)
	assert.Equal(t, "127.0.0.1:669", cfg.Client.Address)
	assert.Equal(t, 5, cfg.Client.Importance)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "nubilum.db", cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Admin.Enabled)
}

func TestLoad_EnvExpansionAndOverrides(t *testing.T) {
	t.Setenv("NUBILUM_TEST_DSN", "/tmp/expanded.db")
	t.Setenv("NUBILUM_SERVER_PORT", "9999")
	t.Setenv("NUBILUM_ADMIN_ENABLED", "yes")
	t.Setenv("NUBILUM_LOG_LEVEL", "warn")

	cfg, err := config.Load(writeConfig(t, `
server:
  port: 7000
database:
  dsn: "${NUBILUM_TEST_DSN}"
logging:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/tmp/expanded.db", cfg.Database.DSN)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"bad strategy", "server:\n  strategy: relaxed\n", "server.strategy"},
		{"bad client strategy", "client:\n  strategy: x\n", "client.strategy"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad driver", "database:\n  driver: postgres\n", "database.driver"},
		{"bad format", "logging:\n  format: xml\n", "logging.format"},
		{"small max message", "server:\n  max_message_bytes: 100\n", "max_message_bytes"},
		{"bad metrics path", "metrics:\n  path: metrics\n", "metrics.path"},
		{"bad yaml", "server: [\n", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadWithFallback(t *testing.T) {
	t.Setenv("NUBILUM_CLIENT_ADDRESS", "192.0.2.1:669")

	cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1:669", cfg.Client.Address)

	path := writeConfig(t, "database:\n  driver: memory\n")
	cfg, err = config.LoadWithFallback(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
}
