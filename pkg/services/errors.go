package services

import (
	"errors"
	"fmt"

	"github.com/openfolio/openfolio/pkg/validation"
)

var (
	// ErrNotFound is returned when an entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a write violates a uniqueness rule,
	// such as a duplicate (type, slug) pair or a second live singleton item
	ErrConflict = errors.New("conflicting entity already exists")

	// ErrInvalidInput is returned when input validation fails without
	// field-level detail
	ErrInvalidInput = errors.New("invalid input")
)

// RateLimitedError is returned when the token bucket denies a request.
type RateLimitedError struct {
	RetryAfter int // seconds
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfter)
}

// UpstreamError is returned when the LLM provider fails after retries or the
// circuit is open.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsValidationError checks if an error carries field-level validation detail
func IsValidationError(err error) bool {
	var ve *validation.Error
	return errors.As(err, &ve)
}
