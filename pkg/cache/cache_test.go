package cache

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/rowguard/rowguard/pkg/queryir"
)

func testRows(ids ...int) []queryir.Row {
	rows := make([]queryir.Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, queryir.Row{"id": queryir.NumberValue(float64(id))})
	}
	return rows
}

func newTestCache(t *testing.T) (Cache, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	c := NewMemoryCache(t.Name(), &Config{DefaultTTL: time.Minute}, mock)
	t.Cleanup(c.Close)
	return c, mock
}

func TestCacheRoundTrip(t *testing.T) {
	c, mock := newTestCache(t)

	data := testRows(1, 2)
	c.Set("k", data, 60*time.Second, []string{"t1"})

	got, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, data, got)

	// Entries expire at, not after, their deadline.
	mock.Add(60 * time.Second)
	_, ok = c.Get("k")
	require.False(t, ok)

	// The expired entry was evicted, not just hidden.
	_, ok = c.Get("k")
	require.False(t, ok)
}

func TestCacheTagInvalidation(t *testing.T) {
	c, _ := newTestCache(t)

	c.Set("k1", testRows(1), time.Minute, []string{"t1"})
	c.Set("k2", testRows(2), time.Minute, []string{"t1", "t2"})
	c.Set("k3", testRows(3), time.Minute, []string{"t2"})

	removed := c.InvalidateByTags([]string{"t1"})
	require.Equal(t, 2, removed)

	_, ok := c.Get("k1")
	require.False(t, ok)
	_, ok = c.Get("k2")
	require.False(t, ok)

	// k3 only carried t2 and survives.
	_, ok = c.Get("k3")
	require.True(t, ok)

	// The tag entry itself is gone: invalidating again removes nothing.
	require.Zero(t, c.InvalidateByTags([]string{"t1"}))
}

func TestCacheLastWriteWins(t *testing.T) {
	c, _ := newTestCache(t)

	c.Set("k", testRows(1), time.Minute, nil)
	c.Set("k", testRows(2), time.Minute, nil)

	got, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, testRows(2), got)
}

func TestCacheMetrics(t *testing.T) {
	c, _ := newTestCache(t)

	c.Set("k", testRows(1), time.Minute, nil)
	c.Get("k")
	c.Get("absent")

	metrics := c.GetMetrics()
	require.Equal(t, uint64(1), metrics.Hits())
	require.Equal(t, uint64(1), metrics.Misses())
}

func TestKeyForExplicitKey(t *testing.T) {
	q := &queryir.Query{Cache: &queryir.CacheConfig{TTLSeconds: 60, Key: "custom"}}
	key, err := KeyFor(q)
	require.NoError(t, err)
	require.Equal(t, "custom", key)
}

func TestKeyForIsDeterministic(t *testing.T) {
	build := func() *queryir.Query {
		return &queryir.Query{
			Filter:  map[string]any{"status": "active", "region": "eu"},
			WhereIn: map[string][]any{"plan": {"pro", "team"}},
		}
	}

	k1, err := KeyFor(build())
	require.NoError(t, err)
	k2, err := KeyFor(build())
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	other := build()
	other.Filter["status"] = "archived"
	k3, err := KeyFor(other)
	require.NoError(t, err)
	require.NotEqual(t, k1, k3)
}

func TestShouldCache(t *testing.T) {
	tests := []struct {
		name  string
		query *queryir.Query
		want  bool
	}{
		{"no config", &queryir.Query{}, false},
		{"zero ttl", &queryir.Query{Cache: &queryir.CacheConfig{}}, false},
		{"positive ttl", &queryir.Query{Cache: &queryir.CacheConfig{TTLSeconds: 30}}, true},
		{
			"condition rejects",
			&queryir.Query{Cache: &queryir.CacheConfig{TTLSeconds: 30, Condition: func(*queryir.Query) bool { return false }}},
			false,
		},
		{
			"condition accepts",
			&queryir.Query{Cache: &queryir.CacheConfig{TTLSeconds: 30, Condition: func(*queryir.Query) bool { return true }}},
			true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ShouldCache(tc.query))
		})
	}
}
