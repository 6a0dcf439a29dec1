// Package cache provides a small byte-oriented cache used for hot
// workflow reads, with in-memory LRU and Redis implementations.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/flowmesh/flowmesh/internal/config"
)

// Cache is the interface both implementations satisfy
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New creates a cache from configuration
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryCache(cfg.Size, cfg.TTL)
	case "redis":
		return NewRedisCache(cfg.RedisAddress), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}
