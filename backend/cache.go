package main

import "sync"

// SearchCache owns the process-wide transposition table. Every search
// receives the same table by reference, so knowledge accumulated for one
// request keeps paying off in the next.
type SearchCache struct {
	mu        sync.Mutex
	TT        *TranspositionTable
	TTSize    int
	TTBuckets int
}

var sharedCache SearchCache

func SharedSearchCache() *SearchCache {
	return &sharedCache
}

// ensureTT returns the cache's table, rebuilding it when the configured
// sizing changed.
func ensureTT(cache *SearchCache, config Config) *TranspositionTable {
	size := config.AiTtSize
	if size <= 0 {
		size = 1
	}
	buckets := config.AiTtBuckets
	if !config.AiTtUseSetAssoc {
		buckets = 1
	}
	if buckets <= 0 {
		buckets = 2
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.TT == nil || cache.TTSize != size || cache.TTBuckets != buckets {
		cache.TT = NewTranspositionTable(uint64(size), buckets)
		cache.TTSize = size
		cache.TTBuckets = buckets
	}
	return cache.TT
}

// FlushGlobalCaches drops every cached position.
func FlushGlobalCaches() {
	cache := SharedSearchCache()
	cache.mu.Lock()
	tt := cache.TT
	cache.mu.Unlock()
	if tt != nil {
		tt.Clear()
	}
}
