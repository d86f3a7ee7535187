package llm

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls the exponential backoff applied to retryable LLM
// failures.
type RetryConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig matches the provider contract: three retries starting
// at one second, doubling, capped at ten seconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
	}
}

// WithRetry runs fn up to cfg.MaxRetries+1 times, sleeping between attempts
// with exponential backoff plus a little jitter. Non-retryable errors
// propagate immediately; context cancellation aborts the wait.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Min(
				float64(cfg.MaxDelay),
				float64(cfg.InitialDelay)*math.Pow(cfg.BackoffMultiplier, float64(attempt-1)),
			))
			jitter := time.Duration(rand.Float64() * float64(delay) * 0.1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay + jitter):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}
