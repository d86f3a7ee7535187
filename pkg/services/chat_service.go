package services

import (
	"context"
	"errors"
	"strings"

	"github.com/openfolio/openfolio/pkg/breaker"
	"github.com/openfolio/openfolio/pkg/events"
	"github.com/openfolio/openfolio/pkg/llm"
	"github.com/openfolio/openfolio/pkg/models"
	"github.com/openfolio/openfolio/pkg/pii"
	"github.com/openfolio/openfolio/pkg/ratelimit"
	"github.com/openfolio/openfolio/pkg/validation"
)

// MaxMessageLen caps the chat message body.
const MaxMessageLen = 2000

// SessionStore is the persistence surface the orchestrator needs.
type SessionStore interface {
	FindActiveSession(ctx context.Context, visitorID string) (*models.ChatSession, error)
	CreateSession(ctx context.Context, visitorID, ipHash, userAgent string) (*models.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID string, role models.MessageRole, content string, tokensUsed int, model string) (*models.ChatMessage, error)
	GetRecentMessages(ctx context.Context, sessionID string, n int) ([]*models.ChatMessage, error)
}

// ToolCaller executes LLM tool calls and describes the tools it exposes.
type ToolCaller interface {
	Definitions() []llm.ToolDefinition
	HandleToolCall(ctx context.Context, call llm.ToolCall) string
}

// RateLimiter is the per-client admission check.
type RateLimiter interface {
	Consume(ctx context.Context, key string) ratelimit.Result
}

// ChatConfig tunes the orchestrator.
type ChatConfig struct {
	SystemPrompt string
	// HistoryWindow is how many persisted messages feed the prompt.
	HistoryWindow int
	// MaxToolIterations bounds the tool-use loop regardless of model behavior.
	MaxToolIterations int
	RetryConfig       llm.RetryConfig
}

// DefaultChatConfig returns the production defaults.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		SystemPrompt:      "You are a helpful assistant answering questions about this portfolio. Use the available tools to look up content before answering.",
		HistoryWindow:     10,
		MaxToolIterations: 6,
		RetryConfig:       llm.DefaultRetryConfig(),
	}
}

// ChatService orchestrates the chat flow: admission, session resolution,
// PII-safe prompting, the tool-use loop, and message persistence.
type ChatService struct {
	sessions   SessionStore
	limiter    RateLimiter
	breaker    *breaker.Breaker
	client     llm.Client
	adapter    ToolCaller
	obfuscator *pii.Obfuscator
	bus        *events.Bus
	cfg        ChatConfig
}

// NewChatService wires the orchestrator.
func NewChatService(sessions SessionStore, limiter RateLimiter, brk *breaker.Breaker, client llm.Client, adapter ToolCaller, bus *events.Bus, cfg ChatConfig) *ChatService {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 6
	}
	return &ChatService{
		sessions:   sessions,
		limiter:    limiter,
		breaker:    brk,
		client:     client,
		adapter:    adapter,
		obfuscator: pii.NewObfuscator(),
		bus:        bus,
		cfg:        cfg,
	}
}

// SendMessage runs one chat turn end to end.
func (s *ChatService) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.SendMessageResponse, error) {
	if err := validateSendMessage(req); err != nil {
		return nil, err
	}

	res := s.limiter.Consume(ctx, req.IPHash)
	if !res.Allowed {
		if s.bus != nil {
			s.bus.Emit(events.TypeChatRateLimited, events.RateLimitedPayload{
				IPHash:     req.IPHash,
				RetryAfter: res.RetryAfter,
			})
		}
		return nil, &RateLimitedError{RetryAfter: res.RetryAfter}
	}

	session, err := s.sessions.FindActiveSession(ctx, req.VisitorID)
	if errors.Is(err, ErrNotFound) {
		session, err = s.sessions.CreateSession(ctx, req.VisitorID, req.IPHash, req.UserAgent)
	}
	if err != nil {
		return nil, err
	}

	// User messages are stored raw; obfuscation applies only to the prompt
	// that leaves the process.
	if _, err := s.sessions.AppendMessage(ctx, session.ID, models.MessageRoleUser, req.Message, 0, ""); err != nil {
		return nil, err
	}

	messages, tokens, err := s.buildPrompt(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	resp, totalTokens, err := s.runToolLoop(ctx, messages)
	if err != nil {
		return nil, err
	}

	content := s.obfuscator.Deobfuscate(resp.Content, tokens)

	if _, err := s.sessions.AppendMessage(ctx, session.ID, models.MessageRoleAssistant, content, totalTokens, resp.Model); err != nil {
		return nil, err
	}

	return &models.SendMessageResponse{
		SessionID:  session.ID,
		Message:    models.AssistantMessage{Role: models.MessageRoleAssistant, Content: content},
		TokensUsed: totalTokens,
	}, nil
}

func validateSendMessage(req models.SendMessageRequest) error {
	ve := &validation.Error{}
	if strings.TrimSpace(req.Message) == "" {
		ve.Add("message", "must not be empty")
	} else if len(req.Message) > MaxMessageLen {
		ve.Add("message", "must be at most 2000 characters")
	}
	if req.VisitorID == "" {
		ve.Add("visitorId", "required")
	}
	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

// buildPrompt assembles system prompt plus the recent persisted messages,
// obfuscating every outbound content. The token table covers all messages
// and is kept for deobfuscating the final reply.
func (s *ChatService) buildPrompt(ctx context.Context, sessionID string) ([]llm.Message, []pii.Token, error) {
	history, err := s.sessions.GetRecentMessages(ctx, sessionID, s.cfg.HistoryWindow)
	if err != nil {
		return nil, nil, err
	}

	messages := make([]llm.Message, 0, len(history)+1)
	if s.cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.cfg.SystemPrompt})
	}

	var tokens []pii.Token
	for _, m := range history {
		content, toks := s.obfuscator.Obfuscate(m.Content)
		tokens = append(tokens, toks...)
		messages = append(messages, llm.Message{Role: string(m.Role), Content: content})
	}
	return messages, tokens, nil
}

// runToolLoop drives the LLM until it answers without tool calls or the
// iteration cap is hit. Tool failures are fed back to the model inside the
// tool result, never surfaced as request failures.
func (s *ChatService) runToolLoop(ctx context.Context, messages []llm.Message) (*llm.Response, int, error) {
	opts := &llm.Options{Tools: s.adapter.Definitions()}
	totalTokens := 0

	for iteration := 0; ; iteration++ {
		resp, err := s.callLLM(ctx, messages, opts)
		if err != nil {
			return nil, 0, &UpstreamError{Provider: s.client.Provider(), Err: err}
		}
		totalTokens += resp.TokensUsed

		if len(resp.ToolCalls) == 0 || iteration >= s.cfg.MaxToolIterations {
			return resp, totalTokens, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := s.adapter.HandleToolCall(ctx, call)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}
}

// callLLM wraps one round trip in the circuit breaker and the retry policy.
// The breaker observes the post-retry outcome, so a burst of transient
// failures counts once against the threshold.
func (s *ChatService) callLLM(ctx context.Context, messages []llm.Message, opts *llm.Options) (*llm.Response, error) {
	var resp *llm.Response
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		return llm.WithRetry(ctx, s.cfg.RetryConfig, func(ctx context.Context) error {
			r, err := s.client.SendMessage(ctx, messages, opts)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
