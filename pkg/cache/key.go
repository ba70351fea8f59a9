package cache

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/rowguard/rowguard/pkg/queryir"
)

// KeyFor derives the cache key for a query: the explicitly configured key if
// one is present, else a digest of the deterministic JSON serialization of
// the full IR. encoding/json writes map keys in sorted order, so the
// serialization is stable for equal queries.
func KeyFor(q *queryir.Query) (string, error) {
	if q.Cache != nil && q.Cache.Key != "" {
		return q.Cache.Key, nil
	}
	serialized, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("unable to serialize query for cache key: %w", err)
	}
	return fmt.Sprintf("query:%016x", xxhash.Sum64(serialized)), nil
}
