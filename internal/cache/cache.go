package cache

import (
	"context"
	"time"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	// DelByPattern removes every key matching a glob pattern and returns
	// the number of keys deleted.
	DelByPattern(ctx context.Context, pattern string) (int, error)

	Close() error
}
