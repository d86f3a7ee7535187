// Package cache provides the shared key-value cache used by the rate limiter
// and the idempotency layer. The default backend is an in-process TTL map; a
// Redis backend is selected when a remote cache URL is configured.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// TokenBucket is the cache-resident rate limiter state for one key.
type TokenBucket struct {
	Tokens     float64 `json:"tokens"`
	LastRefill int64   `json:"lastRefill"` // epoch milliseconds
}

// Cache is the contract shared by all backends.
//
// GetTokenBucket/SetTokenBucket are named operations because strong rate
// limiting needs an atomic read-modify-write on the bucket value. The
// in-process backend satisfies this under its map mutex; remote backends
// must use a CAS or scripting primitive if strict accounting is required.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
	DeletePattern(ctx context.Context, pattern string) error

	GetTokenBucket(ctx context.Context, key string) (*TokenBucket, error)
	SetTokenBucket(ctx context.Context, key string, bucket *TokenBucket, ttl time.Duration) error

	Close() error
}

// New selects a backend: Redis when redisURL is non-empty, otherwise the
// in-process memory cache.
func New(redisURL string) (Cache, error) {
	if redisURL != "" {
		return NewRedis(redisURL)
	}
	return NewMemory(), nil
}
