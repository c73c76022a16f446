// Package cache provides the Redis client behind the read-through content
// cache. Every key is namespaced so the bot can share a Redis instance with
// other applications.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client.
type Cache struct {
	Client *redis.Client
}

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// New creates a new cache client.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return &Cache{Client: client}, nil
}

// Close shuts down the cache client.
func (c *Cache) Close() error {
	return c.Client.Close()
}

// HealthCheck verifies the cache connection is alive.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

const keyPrefix = "edubot:"

func prefixed(key string) string {
	return keyPrefix + key
}

// GetBytes fetches a value by its unprefixed key. The second return is false
// on a miss or a transport error; callers treat both as a miss.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.Client.Get(ctx, prefixed(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetBytes stores a value under the prefixed key with the given TTL.
func (c *Cache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.Client.Set(ctx, prefixed(key), value, ttl).Err()
}
