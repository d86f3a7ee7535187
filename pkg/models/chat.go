package models

import "time"

// SessionStatus is the lifecycle state of a chat session.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusEnded   SessionStatus = "ended"
	SessionStatusExpired SessionStatus = "expired"
)

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// ChatSession is a visitor conversation. Sessions expire 24 hours after
// creation regardless of activity.
type ChatSession struct {
	ID           string        `json:"id"`
	VisitorID    string        `json:"visitorId"`
	IPHash       string        `json:"-"`
	UserAgent    string        `json:"userAgent,omitempty"`
	MessageCount int           `json:"messageCount"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	LastActiveAt time.Time     `json:"lastActiveAt"`
	ExpiresAt    time.Time     `json:"expiresAt"`
}

// ChatMessage is a single persisted message within a chat session.
// Content is stored raw; PII obfuscation applies only to outbound prompts.
type ChatMessage struct {
	ID         string      `json:"id"`
	SessionID  string      `json:"sessionId"`
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	TokensUsed int         `json:"tokensUsed,omitempty"`
	Model      string      `json:"model,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// SendMessageRequest is the chat endpoint input after transport decoding.
type SendMessageRequest struct {
	VisitorID string `json:"visitorId"`
	IPHash    string `json:"-"`
	UserAgent string `json:"-"`
	Message   string `json:"message"`
}

// AssistantMessage is the assistant reply inside a SendMessageResponse.
type AssistantMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// SendMessageResponse is the chat endpoint response envelope.
type SendMessageResponse struct {
	SessionID  string           `json:"sessionId"`
	Message    AssistantMessage `json:"message"`
	TokensUsed int              `json:"tokensUsed"`
}

// SessionListQuery contains filtering options for the admin session listing.
type SessionListQuery struct {
	Status SessionStatus `json:"status,omitempty"`
	Limit  int           `json:"limit,omitempty"`
	Offset int           `json:"offset,omitempty"`
}
