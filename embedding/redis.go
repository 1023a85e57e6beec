package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key schema:
//   - embedding:vector:<sha256(content)> - JSON-encoded vector, with TTL
//   - embedding:access - hash of per-entry access counts
const (
	redisVectorPrefix = "embedding:vector:"
	redisAccessKey    = "embedding:access"
)

// RedisCache is a Redis-backed Cache for multi-process deployments.
// Expiration is delegated to Redis TTLs; there is no capacity bound, and
// least-recently-used pressure is left to the server's eviction policy.
//
// Access counters live in a separate hash and are best-effort: a counter
// for an entry whose vector key has expired is dropped on the next miss.
type RedisCache struct {
	client     *redis.Client
	expiration time.Duration
	enabled    bool
}

// RedisCacheOptions configures a RedisCache.
type RedisCacheOptions struct {
	// URL is the Redis connection string (e.g. "redis://localhost:6379").
	URL string

	// Expiration is the entry time-to-live. Zero means 24 hours.
	Expiration time.Duration

	// Disabled makes every read a miss and every write a no-op.
	Disabled bool
}

// NewRedisCache creates a RedisCache with the given options.
func NewRedisCache(opts RedisCacheOptions) (*RedisCache, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Expiration <= 0 {
		opts.Expiration = 24 * time.Hour
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &RedisCache{
		client:     redis.NewClient(redisOpts),
		expiration: opts.Expiration,
		enabled:    !opts.Disabled,
	}, nil
}

// vectorKey returns the Redis key for a content string.
func vectorKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return redisVectorPrefix + hex.EncodeToString(sum[:])
}

// TryGet implements Cache. A hit refreshes the entry's TTL, which doubles
// as its last-access marker.
func (c *RedisCache) TryGet(ctx context.Context, content string) ([]float32, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}

	key := vectorKey(content)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		// Drop any orphaned access counter for the expired entry.
		c.client.HDel(ctx, redisAccessKey, key)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached embedding: %w", err)
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached embedding: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Expire(ctx, key, c.expiration)
	pipe.HIncrBy(ctx, redisAccessKey, key, 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to touch cached embedding: %w", err)
	}
	return vector, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, content string, vector []float32) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	if err := c.client.Set(ctx, vectorKey(content), data, c.expiration).Err(); err != nil {
		return fmt.Errorf("failed to cache embedding: %w", err)
	}
	return nil
}

// Remove implements Cache.
func (c *RedisCache) Remove(ctx context.Context, content string) error {
	key := vectorKey(content)
	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.HDel(ctx, redisAccessKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove cached embedding: %w", err)
	}
	return nil
}

// Clear implements Cache.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, redisVectorPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to clear cached embeddings: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached embeddings: %w", err)
	}
	if err := c.client.Del(ctx, redisAccessKey).Err(); err != nil {
		return fmt.Errorf("failed to clear access counters: %w", err)
	}
	return nil
}

// Stats implements Cache. Counts are derived from the access hash and may
// briefly include entries whose vectors have expired.
func (c *RedisCache) Stats(ctx context.Context) (CacheStats, error) {
	counts, err := c.client.HVals(ctx, redisAccessKey).Result()
	if err != nil {
		return CacheStats{}, fmt.Errorf("failed to read access counters: %w", err)
	}

	var stats CacheStats
	stats.Entries = len(counts)
	for _, raw := range counts {
		var n int64
		if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
			continue
		}
		stats.TotalAccesses += n
		if n > stats.MaxAccesses {
			stats.MaxAccesses = n
		}
	}
	return stats, nil
}

// Close releases the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
