package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for cache operations (Redis)
type Cache interface {
	// Basic operations
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	// SetNX stores value only when key is absent (scheduler leases)
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Sorted set operations (scheduler due-set scored by next run time)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRangeByScore(ctx context.Context, key string, min, max string, limit int64) ([]string, error)
	ZRem(ctx context.Context, key string, members ...string) error
	ZScore(ctx context.Context, key string, member string) (float64, error)

	// Script execution (for compare-and-delete lease release)
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)

	// Close connection
	Close() error
}
