package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []int{80, 443, 22, 445}, cfg.Scan.Ports)
	assert.Equal(t, 1500*time.Millisecond, cfg.ProbeTimeout())
	assert.Equal(t, 50, cfg.Scan.BatchSize)
	assert.Equal(t, 50, cfg.Scan.Concurrency)
	assert.Equal(t, 50000, cfg.Scan.Budget)
	assert.Equal(t, ViewList, cfg.Scan.OfflineView)
	assert.Equal(t, 30*time.Minute, cfg.RefreshInterval())
	assert.Equal(t, 5*time.Second, cfg.CheckTimeout())
	assert.Equal(t, "bbolt", cfg.Database.Driver)
	assert.Equal(t, cfg.Scan.Ports, cfg.Optimizer.Ports)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
scan:
  ports: [8443]
  timeout_ms: 900
  batch_size: 20
  offline_view: count
providers:
  refresh_minutes: 5
webui:
  listen: 0.0.0.0:9000
database:
  driver: postgres
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv("RANGEPROBE_LISTEN", "127.0.0.1:8088")
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost/db?sslmode=disable")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []int{8443}, cfg.Scan.Ports)
	assert.Equal(t, 900*time.Millisecond, cfg.ProbeTimeout())
	assert.Equal(t, 20, cfg.Scan.Concurrency)
	assert.Equal(t, ViewCount, cfg.Scan.OfflineView)
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval())
	assert.Equal(t, "127.0.0.1:8088", cfg.WebUI.Listen)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@localhost/db?sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, "42", cfg.Telegram.ChatID)
}

func TestLoadConfigTimeoutEnv(t *testing.T) {
	t.Setenv("RANGEPROBE_TIMEOUT_MS", "1200")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1200*time.Millisecond, cfg.ProbeTimeout())
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestInvalidOfflineViewFallsBack(t *testing.T) {
	cfg := &Config{Scan: ScanConfig{OfflineView: "table"}}
	cfg.applyDefaults()
	assert.Equal(t, ViewList, cfg.Scan.OfflineView)
}
