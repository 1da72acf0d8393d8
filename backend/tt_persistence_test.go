package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func persistenceConfig(path string) Config {
	cfg := DefaultConfig()
	cfg.AiEnableTtPersistence = true
	cfg.AiTtPersistencePath = path
	cfg.AiTtSize = 64
	cfg.AiTtBuckets = 2
	return cfg
}

func TestTTPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tt_cache.gob")
	cfg := persistenceConfig(path)

	cache := &SearchCache{}
	tt := ensureTT(cache, cfg)
	tt.Store(101, 9, 345, TTExact, 3)
	tt.Store(202, 4, -12, TTLower, 5)
	persistTTPersistence(cfg, cache)
	require.FileExists(t, path)

	restored := &SearchCache{}
	loadTTPersistence(cfg, restored)
	require.NotNil(t, restored.TT)
	entry, ok := restored.TT.Probe(101)
	require.True(t, ok, "persisted entry should survive the round trip")
	assert.Equal(t, 9, entry.Depth)
	assert.Equal(t, int32(345), entry.Score)
	assert.Equal(t, TTExact, entry.Flag)
	assert.Equal(t, int8(3), entry.BestCol)
	_, ok = restored.TT.Probe(202)
	assert.True(t, ok)
}

func TestTTPersistenceSkipsMismatchedSizing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tt_cache.gob")
	cfg := persistenceConfig(path)

	cache := &SearchCache{}
	ensureTT(cache, cfg).Store(7, 2, 1, TTExact, 0)
	persistTTPersistence(cfg, cache)

	bigger := cfg
	bigger.AiTtSize = 128
	restored := &SearchCache{}
	loadTTPersistence(bigger, restored)
	assert.Nil(t, restored.TT, "a snapshot with different sizing must be ignored")
}

func TestTTPersistenceDisabledDoesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tt_cache.gob")
	cfg := persistenceConfig(path)
	cfg.AiEnableTtPersistence = false

	cache := &SearchCache{}
	ensureTT(cache, cfg).Store(7, 2, 1, TTExact, 0)
	persistTTPersistence(cfg, cache)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "disabled persistence must not write a file")
}

func TestResolveTTPersistencePathKeepsAbsolute(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "snapshot.gob")
	assert.Equal(t, abs, resolveTTPersistencePath(abs))
}
