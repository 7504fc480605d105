package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWorkerConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWorkerConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Concurrency)
	assert.Equal(t, map[string]int{"critical": 6, "default": 3, "low": 1}, cfg.Queues)
}

func TestLoadWorkerConfig_FromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 4\nqueues:\n  default: 1\n"), 0644))

	cfg, err := LoadWorkerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, map[string]int{"default": 1}, cfg.Queues)
}

func TestLoadWorkerConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: [not an int"), 0644))

	_, err := LoadWorkerConfig(path)
	assert.Error(t, err)
}

func TestLoadWorkerConfig_ZeroValuesFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 0\n"), 0644))

	cfg, err := LoadWorkerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Concurrency)
	assert.NotEmpty(t, cfg.Queues)
}
