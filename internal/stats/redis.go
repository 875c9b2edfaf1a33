package stats

import (
	"breadstamp/pkg/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache shares aggregates between server replicas. Entries are keyed by
// a generation counter and the record fingerprint and expire after the TTL.
// Invalidate bumps the generation. Any Redis failure degrades to computing
// directly.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	loc    *time.Location
	logger *zap.Logger
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithRedisPrefix sets the key namespace.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisCache) {
		if p := strings.Trim(prefix, ":"); p != "" {
			c.prefix = p
		}
	}
}

// WithRedisTTL sets the entry expiry.
func WithRedisTTL(d time.Duration) RedisOption {
	return func(c *RedisCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithRedisLocation sets the location month keys are computed in.
func WithRedisLocation(loc *time.Location) RedisOption {
	return func(c *RedisCache) { c.loc = loc }
}

// WithRedisLogger sets the logger used for fallback warnings.
func WithRedisLogger(l *zap.Logger) RedisOption {
	return func(c *RedisCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewRedisCache wraps an existing client.
func NewRedisCache(rdb *redis.Client, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		rdb:    rdb,
		prefix: "breadstamp:stats",
		ttl:    DefaultTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) generationKey() string { return c.prefix + ":gen" }

func (c *RedisCache) entryKey(gen int64, fp Fingerprint) string {
	return fmt.Sprintf("%s:%d:%d:%d", c.prefix, gen, fp.Bakeries, fp.Breads)
}

// Stats serves a shared aggregate, computing and storing it on a miss.
func (c *RedisCache) Stats(ctx context.Context, bakeries []domain.Bakery, breads []domain.Bread) Stats {
	gen, err := c.rdb.Get(ctx, c.generationKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("stats cache unavailable, computing directly", zap.Error(err))
		return Calculate(bakeries, breads, c.loc)
	}
	key := c.entryKey(gen, FingerprintOf(bakeries, breads))
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached Stats
		if jErr := json.Unmarshal(raw, &cached); jErr == nil {
			return cached
		}
		c.logger.Warn("discarding undecodable stats entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
		return Calculate(bakeries, breads, c.loc)
	}
	fresh := Calculate(bakeries, breads, c.loc)
	data, err := json.Marshal(fresh)
	if err != nil {
		return fresh
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
	}
	return fresh
}

// Invalidate advances the generation so every replica misses.
func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Incr(ctx, c.generationKey()).Err(); err != nil {
		c.logger.Warn("stats cache invalidate failed", zap.Error(err))
	}
}
