package cache

import (
	"sync"
	"time"

	"github.com/Yiling-J/theine-go"

	"github.com/rowguard/rowguard/pkg/queryir"
)

// NewTheineCache returns a theine-backed cache for production use: bounded
// capacity with eviction, native per-entry TTL. The tag index is maintained
// alongside the backing cache; invalidating a tag whose entries were already
// evicted is a no-op.
func NewTheineCache(name string, config *Config) (Cache, error) {
	maxCost := config.MaxCost
	if maxCost <= 0 {
		maxCost = 1 << 16
	}
	built, err := theine.NewBuilder[string, []queryir.Row](maxCost).Build()
	if err != nil {
		return nil, err
	}
	tc := &theineCache{
		name:   name,
		config: config,
		cache:  built,
		tags:   newTagIndex(),
	}
	mustRegisterCache(name, tc)
	return tc, nil
}

type theineCache struct {
	name   string
	config *Config
	cache  *theine.Cache[string, []queryir.Row]
	tags   *tagIndex
	closed sync.Once
}

func (tc *theineCache) Get(key string) ([]queryir.Row, bool) {
	return tc.cache.Get(key)
}

func (tc *theineCache) Set(key string, rows []queryir.Row, ttl time.Duration, tags []string) {
	if ttl <= 0 {
		ttl = tc.config.DefaultTTL
	}
	if ttl <= 0 {
		return
	}
	cost := int64(len(rows)) + 1
	tc.cache.SetWithTTL(key, rows, cost, ttl)
	tc.tags.add(key, tags)
}

func (tc *theineCache) InvalidateByTags(tags []string) int {
	keys := tc.tags.take(tags)
	for _, key := range keys {
		tc.cache.Delete(key)
	}
	return len(keys)
}

func (tc *theineCache) Close() {
	tc.closed.Do(func() {
		tc.cache.Close()
		unregisterCache(tc.name)
	})
}

func (tc *theineCache) GetMetrics() Metrics { return theineMetrics{tc.cache} }

type theineMetrics struct {
	cache *theine.Cache[string, []queryir.Row]
}

func (tm theineMetrics) Hits() uint64   { return tm.cache.Stats().Hits() }
func (tm theineMetrics) Misses() uint64 { return tm.cache.Stats().Misses() }
