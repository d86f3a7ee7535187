// Package events provides the typed in-process event bus. Listeners are
// registered at process start; emit is fire-and-forget and never blocks the
// emitter.
package events

import "time"

// Type identifies a domain event kind.
type Type string

const (
	// Content lifecycle
	TypeContentCreated  Type = "content:created"
	TypeContentUpdated  Type = "content:updated"
	TypeContentDeleted  Type = "content:deleted"
	TypeContentRestored Type = "content:restored"

	// Chat lifecycle
	TypeChatSessionStarted Type = "chat:session_started"
	TypeChatMessageSent    Type = "chat:message_sent"
	TypeChatSessionEnded   Type = "chat:session_ended"
	TypeChatRateLimited    Type = "chat:rate_limited"

	// Circuit breaker
	TypeCircuitStateChanged Type = "circuit:state_changed"
)

// Event is one emitted domain event. Payload is one of the typed payload
// structs below, matching Type.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// ContentPayload accompanies all content:* events.
type ContentPayload struct {
	ContentID string `json:"content_id"`
	Type      string `json:"content_type"`
	Slug      string `json:"slug"`
	Version   int    `json:"version"`
	ChangedBy string `json:"changed_by,omitempty"`
}

// SessionStartedPayload accompanies chat:session_started.
type SessionStartedPayload struct {
	SessionID string `json:"session_id"`
	VisitorID string `json:"visitor_id"`
}

// MessageSentPayload accompanies chat:message_sent.
type MessageSentPayload struct {
	SessionID  string `json:"session_id"`
	MessageID  string `json:"message_id"`
	Role       string `json:"role"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model,omitempty"`
}

// SessionEndedPayload accompanies chat:session_ended.
type SessionEndedPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"` // "ended" or "expired"
}

// RateLimitedPayload accompanies chat:rate_limited.
type RateLimitedPayload struct {
	IPHash     string `json:"ip_hash"`
	RetryAfter int    `json:"retry_after_seconds"`
}

// CircuitStateChangedPayload accompanies circuit:state_changed.
type CircuitStateChangedPayload struct {
	Name          string `json:"name"`
	PreviousState string `json:"previous_state"`
	NewState      string `json:"new_state"`
	FailureCount  int    `json:"failure_count"`
}
