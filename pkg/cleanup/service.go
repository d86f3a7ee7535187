// Package cleanup provides data retention for chat sessions.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// SessionPruner is the session-store surface retention needs.
type SessionPruner interface {
	ExpireStaleSessions(ctx context.Context) (int, error)
	PruneSessions(ctx context.Context, retention time.Duration) (int, error)
}

// Config tunes the retention loop.
type Config struct {
	// SessionRetention is how long ended and expired sessions are kept.
	SessionRetention time.Duration
	// Interval is the sweep cadence.
	Interval time.Duration
}

// DefaultConfig keeps finished sessions for thirty days and sweeps hourly.
func DefaultConfig() Config {
	return Config{
		SessionRetention: 30 * 24 * time.Hour,
		Interval:         time.Hour,
	}
}

// Service periodically enforces retention:
//   - Flips active sessions past their expiry to expired
//   - Removes finished sessions (and their messages) past the retention window
//
// All operations are idempotent and safe to run from multiple replicas.
type Service struct {
	cfg      Config
	sessions SessionPruner

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg Config, sessions SessionPruner) *Service {
	if cfg.SessionRetention <= 0 {
		cfg.SessionRetention = DefaultConfig().SessionRetention
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Service{cfg: cfg, sessions: sessions}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"session_retention", s.cfg.SessionRetention,
		"interval", s.cfg.Interval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.expireStale(ctx)
	s.pruneOld(ctx)
}

func (s *Service) expireStale(ctx context.Context) {
	count, err := s.sessions.ExpireStaleSessions(ctx)
	if err != nil {
		slog.Error("Retention: session expiry failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: expired stale sessions", "count", count)
	}
}

func (s *Service) pruneOld(ctx context.Context) {
	count, err := s.sessions.PruneSessions(ctx, s.cfg.SessionRetention)
	if err != nil {
		slog.Error("Retention: session prune failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned old sessions", "count", count)
	}
}
