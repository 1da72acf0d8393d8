package main

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

var dockerCacheDir = "/cache_logs"

type ttPersistenceSnapshot struct {
	Size    int
	Buckets int
	Entries []TTEntry
}

func countValidTTEntries(entries []TTEntry) int {
	count := 0
	for _, entry := range entries {
		if entry.Valid {
			count++
		}
	}
	return count
}

// loadTTPersistence restores the table snapshot written by a previous run.
// A snapshot whose sizing no longer matches the configuration is skipped;
// game state is never part of it, only cached search results.
func loadTTPersistence(cfg Config, cache *SearchCache) {
	if cache == nil || !cfg.AiEnableTtPersistence || cfg.AiTtPersistencePath == "" {
		return
	}
	path := resolveTTPersistencePath(cfg.AiTtPersistencePath)
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("failed to open tt persistence")
		}
		return
	}
	defer file.Close()

	var snapshot ttPersistenceSnapshot
	if err := gob.NewDecoder(file).Decode(&snapshot); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to decode tt persistence")
		return
	}
	buckets := cfg.AiTtBuckets
	if !cfg.AiTtUseSetAssoc {
		buckets = 1
	}
	if snapshot.Size != cfg.AiTtSize || snapshot.Buckets != buckets {
		log.Warn().
			Int("snapshot_size", snapshot.Size).
			Int("snapshot_buckets", snapshot.Buckets).
			Int("config_size", cfg.AiTtSize).
			Int("config_buckets", buckets).
			Msg("tt persistence does not match current config; skipping")
		return
	}
	tt := NewTranspositionTable(uint64(snapshot.Size), snapshot.Buckets)
	tt.loadEntries(snapshot.Entries)
	cache.mu.Lock()
	cache.TT = tt
	cache.TTSize = snapshot.Size
	cache.TTBuckets = snapshot.Buckets
	cache.mu.Unlock()
	log.Info().
		Str("path", path).
		Int("valid", countValidTTEntries(snapshot.Entries)).
		Int("total", len(snapshot.Entries)).
		Msg("restored tt persistence")
}

func persistTTPersistence(cfg Config, cache *SearchCache) {
	if cache == nil || !cfg.AiEnableTtPersistence || cfg.AiTtPersistencePath == "" {
		return
	}
	cache.mu.Lock()
	tt := cache.TT
	size := cache.TTSize
	buckets := cache.TTBuckets
	cache.mu.Unlock()
	if tt == nil || size == 0 || buckets == 0 {
		return
	}
	entries := tt.snapshotEntries()
	path := resolveTTPersistencePath(cfg.AiTtPersistencePath)
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("unable to create tt persistence directory")
			return
		}
	}
	file, err := os.Create(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to create tt persistence")
		return
	}
	defer file.Close()
	snapshot := ttPersistenceSnapshot{
		Size:    size,
		Buckets: buckets,
		Entries: entries,
	}
	if err := gob.NewEncoder(file).Encode(&snapshot); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to encode tt persistence")
		return
	}
	log.Info().
		Str("path", path).
		Int("valid", countValidTTEntries(entries)).
		Int("total", len(entries)).
		Msg("stored tt persistence")
}

func resolveTTPersistencePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if stat, err := os.Stat(dockerCacheDir); err == nil && stat.IsDir() {
		return filepath.Join(dockerCacheDir, path)
	}
	return path
}
