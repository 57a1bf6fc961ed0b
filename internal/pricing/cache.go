// Package pricing keeps per-mint price history and derives prices from swaps.
package pricing

import (
	"sort"
	"sync"
	"time"
)

// MaxTicks is the number of ticks retained per mint.
const MaxTicks = 1000

// Cache is a per-mint bounded price series. Oldest ticks are dropped first.
// Appends for the same mint are serialized, so the cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	series  map[string][]float64 // mint -> prices, oldest first
	updated map[string]time.Time // mint -> last tick
	limit   int
	now     func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock sets the clock used to stamp ticks.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache retaining MaxTicks ticks per mint.
func NewCache(opts ...CacheOption) *Cache {
	return NewCacheWithLimit(MaxTicks, opts...)
}

// NewCacheWithLimit creates a cache retaining limit ticks per mint.
func NewCacheWithLimit(limit int, opts ...CacheOption) *Cache {
	if limit <= 0 {
		limit = MaxTicks
	}
	c := &Cache{
		series:  make(map[string][]float64),
		updated: make(map[string]time.Time),
		limit:   limit,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecordTick appends a price for mint.
func (c *Cache) RecordTick(mint string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.series[mint]
	if len(s) >= c.limit {
		n := copy(s, s[len(s)-c.limit+1:])
		s = s[:n]
	}
	c.series[mint] = append(s, price)
	c.updated[mint] = c.now()
}

// EvictIdle forgets mints without a tick for longer than maxIdle, except those
// keep reports true. It returns the evicted mints, sorted.
func (c *Cache) EvictIdle(maxIdle time.Duration, keep func(mint string) bool) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-maxIdle)
	var evicted []string
	for mint, at := range c.updated {
		if !at.Before(cutoff) || (keep != nil && keep(mint)) {
			continue
		}
		delete(c.series, mint)
		delete(c.updated, mint)
		evicted = append(evicted, mint)
	}
	sort.Strings(evicted)
	return evicted
}

// CurrentPrice returns the latest tick for mint.
func (c *Cache) CurrentPrice(mint string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.series[mint]
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

// PriceChange returns (latest - back) / back where back is the price periods ticks ago.
// It reports false when history is too short or the reference price is zero.
func (c *Cache) PriceChange(mint string, periods int) (float64, bool) {
	if periods <= 0 {
		return 0, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.series[mint]
	if len(s) <= periods {
		return 0, false
	}
	latest := s[len(s)-1]
	back := s[len(s)-1-periods]
	if back == 0 {
		return 0, false
	}
	return (latest - back) / back, true
}

// History returns a copy of the series for mint, oldest first.
func (c *Cache) History(mint string) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.series[mint]
	out := make([]float64, len(s))
	copy(out, s)
	return out
}

// Mints returns all mints with history, sorted.
func (c *Cache) Mints() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.series))
	for m := range c.series {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
