// Package cache stores the sorted search results of previously resolved
// queries, keyed by the exact query text.
package cache

import (
	"context"
	"slices"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/willbeason/table-linking/pkg/search"
)

// DefaultTTL is how long a cached result lives when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// Cache maps query text to its result list. Writers always store the same
// deterministic list for a query, so concurrent Sets of one key agree.
type Cache interface {
	Get(ctx context.Context, query string) ([]search.Match, bool, error)
	Set(ctx context.Context, query string, matches []search.Match) error
}

// Memory is a process-local Cache. Entries expire after the configured TTL
// and the least recently used entries are evicted beyond the capacity.
type Memory struct {
	cache *ttlcache.Cache[string, []search.Match]
}

// NewMemory creates a Memory cache. A zero ttl means entries never expire; a
// zero capacity means no bound.
func NewMemory(ttl time.Duration, capacity uint64) *Memory {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	opts := []ttlcache.Option[string, []search.Match]{
		ttlcache.WithTTL[string, []search.Match](ttl),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []search.Match](capacity))
	}
	return &Memory{cache: ttlcache.New(opts...)}
}

func (m *Memory) Get(_ context.Context, query string) ([]search.Match, bool, error) {
	item := m.cache.Get(query)
	if item == nil {
		return nil, false, nil
	}
	return slices.Clone(item.Value()), true, nil
}

func (m *Memory) Set(_ context.Context, query string, matches []search.Match) error {
	m.cache.Set(query, slices.Clone(matches), ttlcache.DefaultTTL)
	return nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	return m.cache.Len()
}
