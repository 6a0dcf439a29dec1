package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache is a Redis-backed cache
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis cache against the given address
func NewRedisCache(address string) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: address}),
	}
}

// Get implements Cache.Get
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Set implements Cache.Set
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Delete implements Cache.Delete
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Close implements Cache.Close
func (c *RedisCache) Close() error {
	return c.client.Close()
}
