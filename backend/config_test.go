package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetConfigAfter(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		configStore.Update(DefaultConfig())
	})
}

func TestDefaultConfigIsSane(t *testing.T) {
	cfg := DefaultConfig()
	assert.Greater(t, cfg.AiTimeBudgetMs, 0)
	assert.Greater(t, cfg.AiTtSize, 0)
	assert.Greater(t, cfg.AiTtBuckets, 0)
	assert.Greater(t, cfg.AiTimeoutCheckNodes, 0)
	assert.Greater(t, cfg.Heuristics.Three, cfg.Heuristics.Two)
}

func TestConfigStoreUpdateAndGet(t *testing.T) {
	resetConfigAfter(t)
	cfg := DefaultConfig()
	cfg.AiTimeBudgetMs = 1234
	configStore.Update(cfg)
	assert.Equal(t, 1234, GetConfig().AiTimeBudgetMs)
}

func TestLoadConfigFromFile(t *testing.T) {
	resetConfigAfter(t)
	path := filepath.Join(t.TempDir(), "connect4.yaml")
	content := []byte("ai_time_budget_ms: 250\nai_tt_buckets: 8\nheuristics:\n  three: 7\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	require.NoError(t, LoadConfig(path))
	cfg := GetConfig()
	assert.Equal(t, 250, cfg.AiTimeBudgetMs)
	assert.Equal(t, 8, cfg.AiTtBuckets)
	assert.Equal(t, 7, cfg.Heuristics.Three)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultConfig().AiTtSize, cfg.AiTtSize)
}

func TestLoadConfigMissingExplicitFileFails(t *testing.T) {
	resetConfigAfter(t)
	err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	resetConfigAfter(t)
	t.Setenv("CONNECT4_AI_TT_BUCKETS", "8")
	t.Setenv("CONNECT4_LOG_LEVEL", "debug")
	require.NoError(t, LoadConfig(""))
	cfg := GetConfig()
	assert.Equal(t, 8, cfg.AiTtBuckets)
	assert.Equal(t, "debug", cfg.LogLevel)
}
