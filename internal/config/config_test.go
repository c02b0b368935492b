package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openledger/statetable/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
node:
  instance_id: node-1
table:
  cache_shards: 32
  commit_workers: 8
metrics:
  enabled: true
  port: 9100
logging:
  level: debug
  format: console
devnode:
  block_interval: 1s
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "node-1", cfg.Node.InstanceID)
	assert.Equal(t, 32, cfg.Table.CacheShards)
	assert.Equal(t, 8, cfg.Table.CommitWorkers)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9100, cfg.Metrics.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, time.Second, cfg.Devnode.BlockInterval)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Node.InstanceID, "a missing instance id gets generated")
	assert.Equal(t, 16, cfg.Table.CacheShards)
	assert.Equal(t, 4, cfg.Table.CommitWorkers)
	assert.Equal(t, 9464, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"bad level", "logging:\n  level: loud\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"bad port", "metrics:\n  port: 70000\n"},
		{"negative shards", "table:\n  cache_shards: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadConfig(writeConfig(t, tt.contents))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Devnode.BlockInterval)
}
