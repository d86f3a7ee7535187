package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Error is a failure reported by (or on the way to) the LLM provider.
type Error struct {
	Provider   string
	StatusCode int // 0 when the failure happened before an HTTP status existed
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm provider %s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm provider %s: %s", e.Provider, e.Message)
}

// retryableStatuses are the HTTP statuses worth retrying.
var retryableStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// retryableFragments mark transient transport failures by message content.
var retryableFragments = []string{
	"rate limit",
	"network",
	"connection",
	"ECONNREFUSED",
	"ENOTFOUND",
	"ETIMEDOUT",
	"timeout",
	"fetch failed",
	"socket hang up",
}

// IsRetryable reports whether err is worth retrying: a retryable HTTP
// status, a timeout or cancellation from the transport, or a message that
// indicates a transient network condition.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var le *Error
	if errors.As(err, &le) && le.StatusCode > 0 {
		return retryableStatuses[le.StatusCode]
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, strings.ToLower(fragment)) {
			return true
		}
	}
	return false
}
