package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rowguard/rowguard/pkg/queryir"
)

// NewMemoryCache returns a mutex-guarded in-process cache. Expiry is checked
// on read against the supplied clock, which makes TTL behavior testable with
// a mock clock.
func NewMemoryCache(name string, config *Config, clk clock.Clock) Cache {
	mc := &memoryCache{
		name:    name,
		config:  config,
		clock:   clk,
		entries: make(map[string]memoryEntry),
		tags:    newTagIndex(),
	}
	mustRegisterCache(name, mc)
	return mc
}

type memoryEntry struct {
	rows      []queryir.Row
	expiresAt time.Time
}

type memoryCache struct {
	name   string
	config *Config
	clock  clock.Clock

	mu      sync.Mutex
	entries map[string]memoryEntry
	tags    *tagIndex
	closed  sync.Once

	metrics memoryMetrics
}

func (mc *memoryCache) Get(key string) ([]queryir.Row, bool) {
	mc.mu.Lock()
	entry, ok := mc.entries[key]
	if ok && !mc.clock.Now().Before(entry.expiresAt) {
		// Past expiry: treat as a miss and evict.
		delete(mc.entries, key)
		ok = false
	}
	mc.mu.Unlock()

	if !ok {
		mc.metrics.misses.Add(1)
		mc.tags.remove(key)
		return nil, false
	}
	mc.metrics.hits.Add(1)
	return entry.rows, true
}

func (mc *memoryCache) Set(key string, rows []queryir.Row, ttl time.Duration, tags []string) {
	if ttl <= 0 {
		ttl = mc.config.DefaultTTL
	}
	if ttl <= 0 {
		return
	}

	mc.mu.Lock()
	mc.entries[key] = memoryEntry{rows: rows, expiresAt: mc.clock.Now().Add(ttl)}
	mc.mu.Unlock()

	mc.tags.add(key, tags)
}

func (mc *memoryCache) InvalidateByTags(tags []string) int {
	keys := mc.tags.take(tags)

	mc.mu.Lock()
	defer mc.mu.Unlock()
	removed := 0
	for _, key := range keys {
		if _, ok := mc.entries[key]; ok {
			delete(mc.entries, key)
			removed++
		}
	}
	return removed
}

func (mc *memoryCache) Close() {
	mc.closed.Do(func() {
		unregisterCache(mc.name)
	})
}

func (mc *memoryCache) GetMetrics() Metrics { return &mc.metrics }

type memoryMetrics struct {
	hits   atomic.Uint64
	misses atomic.Uint64
}

func (mm *memoryMetrics) Hits() uint64   { return mm.hits.Load() }
func (mm *memoryMetrics) Misses() uint64 { return mm.misses.Load() }
