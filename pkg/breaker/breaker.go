// Package breaker implements the circuit breaker wrapped around outbound
// LLM calls. One breaker instance guards one dependency; state transitions
// are serialized under a mutex and announced on the event bus.
package breaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openfolio/openfolio/pkg/events"
)

// State is the breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// OpenError is returned when the breaker rejects a call without invoking
// the wrapped function.
type OpenError struct {
	Provider string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open for provider %s", e.Provider)
}

// Config holds breaker construction parameters.
type Config struct {
	Name             string
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	Timeout          time.Duration // open duration before a half-open probe
}

// Breaker is a closed/open/half-open state machine. Safe for concurrent use.
type Breaker struct {
	cfg Config
	bus *events.Bus

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	openedAt     time.Time
	now          func() time.Time
}

// New creates a closed breaker. bus may be nil (no transition events).
func New(cfg Config, bus *events.Bus) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	return &Breaker{cfg: cfg, bus: bus, state: StateClosed, now: time.Now}
}

// Do runs fn under the breaker. In the open state fn is not invoked and an
// *OpenError is returned, unless the open timeout has elapsed, in which case
// the breaker moves to half-open and probes with this call.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.Timeout {
			b.mu.Unlock()
			return &OpenError{Provider: b.cfg.Name}
		}
		b.transition(StateHalfOpen)
	}
	state := b.state
	b.mu.Unlock()

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(state)
		return err
	}
	b.onSuccess(state)
	return nil
}

// onFailure and onSuccess are called with the lock held; state is the
// breaker position observed when the call started.
func (b *Breaker) onFailure(state State) {
	switch state {
	case StateHalfOpen:
		// Any half-open failure reopens immediately.
		b.openedAt = b.now()
		b.transition(StateOpen)
	default:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold && b.state == StateClosed {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
	}
}

func (b *Breaker) onSuccess(state State) {
	switch state {
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.failureCount = 0
			b.successCount = 0
			b.transition(StateClosed)
		}
	default:
		b.failureCount = 0
	}
}

// transition changes state and emits circuit:state_changed. Lock held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == StateHalfOpen {
		b.successCount = 0
	}

	slog.Info("Circuit breaker state changed",
		"name", b.cfg.Name, "from", from, "to", to, "failure_count", b.failureCount)

	if b.bus != nil {
		b.bus.Emit(events.TypeCircuitStateChanged, events.CircuitStateChangedPayload{
			Name:          b.cfg.Name,
			PreviousState: string(from),
			NewState:      string(to),
			FailureCount:  b.failureCount,
		})
	}
}

// State returns the current breaker position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset restores the closed state with zeroed counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.successCount = 0
	b.transition(StateClosed)
}
