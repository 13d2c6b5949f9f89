// Package kv provides short-lived counters shared between service instances.
// Redis backs the counters in production; MemoryCounter serves single-process
// deployments and tests.
package kv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Counter counts events per key inside an expiring window.
type Counter interface {
	// Incr adds one to key and returns the new count. The window starts at
	// the first increment and is not extended by later ones.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// Reset removes the key.
	Reset(ctx context.Context, key string) error
}

// RedisConfig holds connection settings for NewClient.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client.
func NewClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Commander is the subset of the Redis client used by RedisCounter.
type Commander interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCounter implements Counter with INCR and EXPIRE.
type RedisCounter struct {
	client Commander
	prefix string
}

// NewRedisCounter returns a counter that namespaces keys with prefix.
func NewRedisCounter(client Commander, prefix string) *RedisCounter {
	return &RedisCounter{client: client, prefix: prefix}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	full := c.prefix + key
	n, err := c.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: incr %s: %w", full, err)
	}
	if n == 1 && window > 0 {
		if err := c.client.Expire(ctx, full, window).Err(); err != nil {
			return n, fmt.Errorf("kv: expire %s: %w", full, err)
		}
	}
	return n, nil
}

func (c *RedisCounter) Reset(ctx context.Context, key string) error {
	full := c.prefix + key
	if err := c.client.Del(ctx, full).Err(); err != nil {
		return fmt.Errorf("kv: del %s: %w", full, err)
	}
	return nil
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounter is an in-process Counter.
type MemoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryCounter returns an empty MemoryCounter. A nil now uses time.Now.
func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{now: now, entries: make(map[string]memoryEntry)}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.live(key)
	if !ok {
		entry = memoryEntry{}
		if window > 0 {
			entry.expiresAt = c.now().Add(window)
		}
	}
	entry.count++
	c.entries[key] = entry
	return entry.count, nil
}

func (c *MemoryCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// live returns the entry for key, dropping it when expired. Callers hold mu.
func (c *MemoryCounter) live(key string) (memoryEntry, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}
