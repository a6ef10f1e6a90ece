// Package cache provides the Redis-backed cache and the distributed per-key lock built on it.
package cache

import (
	"context"
	"time"
)

// Cache is the subset of Redis operations used by the service.
// Get returns an empty string, without error, for missing keys.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
	Health(ctx context.Context) error
	Close() error
}
