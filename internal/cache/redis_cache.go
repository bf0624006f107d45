package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/claudette-ai/claudette/internal/model"
)

// RedisCache is an alternative response cache backend for deployments that
// already run a shared Redis. A nil client means every call is a
// pass-through (every Get is a miss, every Put/Sweep/Clear is a no-op)
// rather than an error, since the cache is an optimization, never a
// correctness requirement.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisCache wraps client. A nil client puts the cache into noop mode.
func NewRedisCache(client *redis.Client, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, logger: logger}
}

func redisKey(key string) string {
	return "claudette:cache:" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) (model.CacheEntry, bool, error) {
	if c.client == nil {
		return model.CacheEntry{}, false, nil
	}

	raw, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err == redis.Nil {
		return model.CacheEntry{}, false, nil
	}
	if err != nil {
		c.logger.Warn("cache: redis get failed, treating as miss", "error", err)
		return model.CacheEntry{}, false, nil
	}

	var e model.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("cache: decode redis entry: %w", err)
	}
	if e.Expired(time.Now()) {
		return model.CacheEntry{}, false, nil
	}

	e.AccessCount++
	e.LastAccessed = time.Now()
	if encoded, err := json.Marshal(e); err == nil {
		ttl := time.Until(e.ExpiresAt)
		if ttl > 0 {
			_ = c.client.Set(ctx, redisKey(key), encoded, ttl).Err()
		}
	}

	return e, true, nil
}

func (c *RedisCache) Put(ctx context.Context, entry model.CacheEntry) error {
	if c.client == nil {
		return nil
	}
	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: encode redis entry: %w", err)
	}
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, redisKey(entry.Key), encoded, ttl).Err(); err != nil {
		c.logger.Warn("cache: redis put failed", "error", err)
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// SweepExpired is a no-op: Redis TTLs already evict expired keys on their
// own, so there's nothing left for a sweeper to do.
func (c *RedisCache) SweepExpired(ctx context.Context) error { return nil }

// Stats is unsupported without scanning the whole keyspace, which Redis
// deployments of this cache are expected to avoid; it reports zero values
// rather than erroring.
func (c *RedisCache) Stats(ctx context.Context) (model.CacheStats, error) {
	return model.CacheStats{}, nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, "claudette:cache:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache: clear: %w", err)
		}
	}
	return iter.Err()
}
