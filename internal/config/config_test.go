package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SUBTRACK_DATABASE__URL", "postgres://localhost/subtrack")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 30*time.Minute, cfg.Notifications.ScanInterval)
	assert.Equal(t, 5*time.Minute, cfg.Rates.TickInterval)
	assert.Equal(t, 587, cfg.Notifications.Email.SMTPPort)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  url: postgres://db:5432/subtrack
server:
  port: "3000"
notifications:
  scan_interval: 10m
redis:
  enabled: true
  addr: redis:6379
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://db:5432/subtrack", cfg.Database.URL)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Notifications.ScanInterval)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  url: postgres://from-file\n"), 0o600))

	t.Setenv("SUBTRACK_DATABASE__URL", "postgres://from-env")
	t.Setenv("SUBTRACK_LOG__LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://from-env", cfg.Database.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}
