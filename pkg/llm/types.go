// Package llm provides the chat-completion client for OpenAI-compatible
// providers, plus the retry wrapper applied around each call.
package llm

import (
	"context"
	"encoding/json"
)

// Role values for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of the outbound conversation.
type Message struct {
	Role       string
	Content    string
	ToolCallID string     // for tool result messages
	ToolCalls  []ToolCall // for assistant messages that requested tools
}

// ToolCall is an LLM-initiated invocation of a registered function.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// ToolDefinition describes a tool offered to the LLM.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage // JSON Schema
}

// Options configures a single SendMessage call. Zero values fall back to the
// client's configured defaults.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	Tools       []ToolDefinition
}

// Response is the provider's reply to one SendMessage call.
type Response struct {
	Content    string
	TokensUsed int
	Model      string
	ToolCalls  []ToolCall
}

// Client is the outbound LLM dependency. Implementations must honor ctx
// cancellation and map provider failures to *Error.
type Client interface {
	// SendMessage sends the conversation and returns the assistant reply.
	SendMessage(ctx context.Context, messages []Message, opts *Options) (*Response, error)

	// Provider returns the provider name used in error reporting.
	Provider() string
}
