package mcpserver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTTL is how long an HTTP session may sit idle before the
// reaper evicts it.
const DefaultIdleTTL = 30 * time.Minute

// Session is one streamable HTTP client connection.
type Session struct {
	ID        string
	CreatedAt time.Time
	LastSeen  time.Time

	// closed is closed on eviction so any bound SSE stream ends with it.
	closed chan struct{}
}

// SessionManager owns the streamable HTTP sessions. A reaper goroutine
// evicts idle entries; Close stops it.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idleTTL  time.Duration
	done     chan struct{}
	stop     sync.Once
}

// NewSessionManager starts the manager and its reaper.
func NewSessionManager(idleTTL time.Duration) *SessionManager {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	sm := &SessionManager{
		sessions: make(map[string]*Session),
		idleTTL:  idleTTL,
		done:     make(chan struct{}),
	}
	go sm.reapLoop()
	return sm
}

// Create allocates a new session.
func (sm *SessionManager) Create() *Session {
	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		LastSeen:  time.Now(),
		closed:    make(chan struct{}),
	}

	sm.mu.Lock()
	sm.sessions[session.ID] = session
	sm.mu.Unlock()

	slog.Debug("Created MCP session", "session_id", session.ID)
	return session
}

// Touch marks a session as active and reports whether it exists.
func (sm *SessionManager) Touch(id string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, ok := sm.sessions[id]
	if !ok {
		return false
	}
	session.LastSeen = time.Now()
	return true
}

// Get returns a live session.
func (sm *SessionManager) Get(id string) (*Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	session, ok := sm.sessions[id]
	return session, ok
}

// Delete tears a session down, ending any bound stream.
func (sm *SessionManager) Delete(id string) {
	sm.mu.Lock()
	session, ok := sm.sessions[id]
	if ok {
		delete(sm.sessions, id)
	}
	sm.mu.Unlock()

	if ok {
		close(session.closed)
		slog.Debug("Deleted MCP session", "session_id", id)
	}
}

// Len reports the number of live sessions.
func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// Close stops the reaper and drops every session.
func (sm *SessionManager) Close() {
	sm.stop.Do(func() { close(sm.done) })

	sm.mu.Lock()
	for id, session := range sm.sessions {
		delete(sm.sessions, id)
		close(session.closed)
	}
	sm.mu.Unlock()
}

func (sm *SessionManager) reapLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-sm.done:
			return
		case now := <-ticker.C:
			sm.reap(now)
		}
	}
}

func (sm *SessionManager) reap(now time.Time) {
	var evicted []*Session

	sm.mu.Lock()
	for id, session := range sm.sessions {
		if now.Sub(session.LastSeen) > sm.idleTTL {
			delete(sm.sessions, id)
			evicted = append(evicted, session)
		}
	}
	sm.mu.Unlock()

	for _, session := range evicted {
		close(session.closed)
	}
	if len(evicted) > 0 {
		slog.Info("Reaped idle MCP sessions", "count", len(evicted))
	}
}
