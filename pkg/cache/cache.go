// Package cache implements the result cache: TTL entries keyed by a
// deterministic serialization of the query IR, with tag-based invalidation.
// Cache failures are never fatal; callers degrade to compile-and-execute.
package cache

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/rowguard/rowguard/pkg/queryir"
)

// Config for a cache instance.
type Config struct {
	// MaxCost is the cache capacity; each entry costs one unit per row.
	MaxCost int64

	// DefaultTTL applies when a set carries no explicit TTL.
	DefaultTTL time.Duration
}

func (c *Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("maxCost", humanize.Comma(c.MaxCost)).Dur("defaultTTL", c.DefaultTTL)
}

// Cache is the result cache used to short-circuit query compilation and
// execution. Implementations must be safe for concurrent use; the key/tag
// index is process-wide shared state. There is no single-flight
// de-duplication: concurrent identical requests may each miss and each
// populate the cache, last write wins.
type Cache interface {
	// Get returns the cached rows for the key, if present and unexpired.
	// A get past expiry is a miss and evicts the entry.
	Get(key string) ([]queryir.Row, bool)

	// Set stores rows under the key for the given TTL and associates the
	// entry with the given tags.
	Set(key string, rows []queryir.Row, ttl time.Duration, tags []string)

	// InvalidateByTags deletes every key under every named tag, then
	// clears those tag index entries. It returns the number of entries
	// removed.
	InvalidateByTags(tags []string) int

	// Close releases any background resources.
	Close()

	// GetMetrics returns the metrics block for the cache.
	GetMetrics() Metrics
}

// Metrics defines metrics exported by the cache.
type Metrics interface {
	// Hits is the number of cache hits.
	Hits() uint64

	// Misses is the number of cache misses.
	Misses() uint64
}

// ShouldCache reports whether the query opted into caching: a cache config
// with a positive TTL whose condition, if any, accepts the query.
func ShouldCache(q *queryir.Query) bool {
	if q == nil || q.Cache == nil || q.Cache.TTLSeconds <= 0 {
		return false
	}
	if q.Cache.Condition != nil && !q.Cache.Condition(q) {
		return false
	}
	return true
}
