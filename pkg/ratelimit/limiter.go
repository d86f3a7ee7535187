// Package ratelimit implements a per-key token bucket over the shared cache.
// Keys are salted hashes of the client address; state is best-effort under
// contention (see the Cache contract for strict accounting requirements).
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/openfolio/openfolio/pkg/cache"
)

// Config holds the process-global bucket parameters.
type Config struct {
	Capacity   float64       // maximum burst size
	RefillRate float64       // tokens per second
	TTL        time.Duration // cache lifetime of idle buckets
}

// Result is the outcome of a consume or peek.
type Result struct {
	Allowed    bool `json:"allowed"`
	Remaining  int  `json:"remaining"`
	RetryAfter int  `json:"retryAfter,omitempty"` // seconds until a token is available
}

// Limiter is a cache-backed token bucket rate limiter.
type Limiter struct {
	cache cache.Cache
	cfg   Config
	now   func() time.Time
}

// NewLimiter creates a limiter over the given cache.
func NewLimiter(c cache.Cache, cfg Config) *Limiter {
	return &Limiter{cache: c, cfg: cfg, now: time.Now}
}

// Consume takes one token from the bucket for key, creating a full bucket on
// first sight. A cache failure fails open: the request is allowed and the
// error logged, so a degraded cache never turns into an outage.
func (l *Limiter) Consume(ctx context.Context, key string) Result {
	nowMs := l.now().UnixMilli()

	bucket, err := l.cache.GetTokenBucket(ctx, key)
	if err != nil && err != cache.ErrNotFound {
		slog.Warn("Rate limiter cache read failed, failing open", "error", err)
		return Result{Allowed: true, Remaining: 0}
	}
	if bucket == nil {
		bucket = &cache.TokenBucket{Tokens: l.cfg.Capacity, LastRefill: nowMs}
	}

	l.refill(bucket, nowMs)

	if bucket.Tokens >= 1 {
		bucket.Tokens--
		l.writeBack(ctx, key, bucket)
		return Result{Allowed: true, Remaining: int(math.Floor(bucket.Tokens))}
	}

	retryAfter := int(math.Ceil((1 - bucket.Tokens) / l.cfg.RefillRate))
	l.writeBack(ctx, key, bucket)
	return Result{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
}

// Peek forecasts the bucket state for key without consuming or writing back.
func (l *Limiter) Peek(ctx context.Context, key string) Result {
	nowMs := l.now().UnixMilli()

	bucket, err := l.cache.GetTokenBucket(ctx, key)
	if err != nil && err != cache.ErrNotFound {
		slog.Warn("Rate limiter cache read failed, failing open", "error", err)
		return Result{Allowed: true, Remaining: 0}
	}
	if bucket == nil {
		return Result{Allowed: true, Remaining: int(l.cfg.Capacity)}
	}

	l.refill(bucket, nowMs)

	if bucket.Tokens >= 1 {
		return Result{Allowed: true, Remaining: int(math.Floor(bucket.Tokens))}
	}
	return Result{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: int(math.Ceil((1 - bucket.Tokens) / l.cfg.RefillRate)),
	}
}

// refill credits tokens for time elapsed since the last refill, capped at
// capacity.
func (l *Limiter) refill(bucket *cache.TokenBucket, nowMs int64) {
	elapsed := float64(nowMs-bucket.LastRefill) / 1000
	if elapsed > 0 {
		bucket.Tokens = math.Min(l.cfg.Capacity, bucket.Tokens+elapsed*l.cfg.RefillRate)
	}
	bucket.LastRefill = nowMs
}

func (l *Limiter) writeBack(ctx context.Context, key string, bucket *cache.TokenBucket) {
	if err := l.cache.SetTokenBucket(ctx, key, bucket, l.cfg.TTL); err != nil {
		slog.Warn("Rate limiter cache write failed", "error", err)
	}
}
