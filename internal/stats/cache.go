package stats

import (
	"breadstamp/pkg/domain"
	"context"
	"sync"
	"time"
)

// DefaultTTL bounds how long a cached aggregate is served.
const DefaultTTL = 60 * time.Second

// Fingerprint identifies the record set an aggregate was computed from.
type Fingerprint struct {
	Bakeries int `json:"bakeries"`
	Breads   int `json:"breads"`
}

// FingerprintOf captures the record counts.
func FingerprintOf(bakeries []domain.Bakery, breads []domain.Bread) Fingerprint {
	return Fingerprint{Bakeries: len(bakeries), Breads: len(breads)}
}

// Cache memoizes Calculate.
type Cache interface {
	Stats(ctx context.Context, bakeries []domain.Bakery, breads []domain.Bread) Stats
	Invalidate(ctx context.Context)
}

// MemoryCache keeps one aggregate in process. A hit needs an entry younger
// than the TTL computed from the same record counts.
type MemoryCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	loc   *time.Location
	nowFn func() time.Time

	cached *Stats
	at     time.Time
	fp     Fingerprint

	hits, misses uint64
}

// NewMemoryCache constructs an in-process cache. A non-positive ttl uses DefaultTTL.
func NewMemoryCache(ttl time.Duration, loc *time.Location) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{ttl: ttl, loc: loc, nowFn: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (c *MemoryCache) SetClock(fn func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowFn = fn
}

// Stats returns the cached aggregate or recomputes it.
func (c *MemoryCache) Stats(_ context.Context, bakeries []domain.Bakery, breads []domain.Bread) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFn()
	fp := FingerprintOf(bakeries, breads)
	if c.cached != nil && now.Sub(c.at) < c.ttl && c.fp == fp {
		c.hits++
		return *c.cached
	}
	c.misses++
	fresh := Calculate(bakeries, breads, c.loc)
	c.cached, c.at, c.fp = &fresh, now, fp
	return fresh
}

// Invalidate drops the cached aggregate.
func (c *MemoryCache) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.at = time.Time{}
	c.fp = Fingerprint{Bakeries: -1, Breads: -1}
}

// Counters reports cache hits and misses.
func (c *MemoryCache) Counters() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
