package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/openfolio/pkg/breaker"
	"github.com/openfolio/openfolio/pkg/cache"
	"github.com/openfolio/openfolio/pkg/events"
	"github.com/openfolio/openfolio/pkg/llm"
	"github.com/openfolio/openfolio/pkg/models"
	"github.com/openfolio/openfolio/pkg/ratelimit"
)

// fakeSessionStore keeps sessions and messages in memory.
type fakeSessionStore struct {
	sessions map[string]*models.ChatSession // by visitor id
	messages map[string][]*models.ChatMessage
	seq      int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[string]*models.ChatSession),
		messages: make(map[string][]*models.ChatMessage),
	}
}

func (f *fakeSessionStore) FindActiveSession(_ context.Context, visitorID string) (*models.ChatSession, error) {
	if s, ok := f.sessions[visitorID]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (f *fakeSessionStore) CreateSession(_ context.Context, visitorID, ipHash, userAgent string) (*models.ChatSession, error) {
	f.seq++
	s := &models.ChatSession{
		ID:        fmt.Sprintf("sess_%d", f.seq),
		VisitorID: visitorID,
		IPHash:    ipHash,
		UserAgent: userAgent,
		Status:    models.SessionStatusActive,
	}
	f.sessions[visitorID] = s
	return s, nil
}

func (f *fakeSessionStore) AppendMessage(_ context.Context, sessionID string, role models.MessageRole, content string, tokensUsed int, model string) (*models.ChatMessage, error) {
	f.seq++
	m := &models.ChatMessage{
		ID:         fmt.Sprintf("msg_%d", f.seq),
		SessionID:  sessionID,
		Role:       role,
		Content:    content,
		TokensUsed: tokensUsed,
		Model:      model,
		CreatedAt:  time.Now(),
	}
	f.messages[sessionID] = append(f.messages[sessionID], m)
	return m, nil
}

func (f *fakeSessionStore) GetRecentMessages(_ context.Context, sessionID string, n int) ([]*models.ChatMessage, error) {
	msgs := f.messages[sessionID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}

// scriptedClient replays canned responses and records every request.
type scriptedClient struct {
	responses []*llm.Response
	err       error
	calls     [][]llm.Message
}

func (c *scriptedClient) SendMessage(_ context.Context, messages []llm.Message, _ *llm.Options) (*llm.Response, error) {
	c.calls = append(c.calls, messages)
	if c.err != nil {
		return nil, c.err
	}
	idx := len(c.calls) - 1
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	return c.responses[idx], nil
}

func (c *scriptedClient) Provider() string { return "stub" }

// recordingAdapter exposes one read tool and records calls.
type recordingAdapter struct {
	calls []llm.ToolCall
}

func (a *recordingAdapter) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{{Name: "list_content", Description: "d", InputSchema: []byte(`{}`)}}
}

func (a *recordingAdapter) HandleToolCall(_ context.Context, call llm.ToolCall) string {
	a.calls = append(a.calls, call)
	return `{"success":true,"data":{"items":[]}}`
}

func fastRetry() llm.RetryConfig {
	return llm.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 2}
}

func newTestChatService(t *testing.T, store SessionStore, client llm.Client, adapter ToolCaller, capacity float64) (*ChatService, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	limiter := ratelimit.NewLimiter(cache.NewMemory(), ratelimit.Config{
		Capacity:   capacity,
		RefillRate: 0.5,
		TTL:        time.Minute,
	})
	brk := breaker.New(breaker.Config{Name: "stub"}, bus)

	cfg := DefaultChatConfig()
	cfg.RetryConfig = fastRetry()
	return NewChatService(store, limiter, brk, client, adapter, bus, cfg), bus
}

func TestSendMessageHappyPath(t *testing.T) {
	store := newFakeSessionStore()
	client := &scriptedClient{responses: []*llm.Response{
		{Content: "Hello", TokensUsed: 7, Model: "stub-1"},
	}}
	svc, _ := newTestChatService(t, store, client, &recordingAdapter{}, 10)

	resp, err := svc.SendMessage(context.Background(), models.SendMessageRequest{
		VisitorID: "v1", IPHash: "ip1", Message: "Hi",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MessageRoleAssistant, resp.Message.Role)
	assert.Equal(t, "Hello", resp.Message.Content)
	assert.Equal(t, 7, resp.TokensUsed)

	session := store.sessions["v1"]
	require.NotNil(t, session)
	assert.Equal(t, session.ID, resp.SessionID)

	msgs := store.messages[session.ID]
	require.Len(t, msgs, 2)
	assert.Equal(t, models.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, "Hi", msgs[0].Content)
	assert.Equal(t, models.MessageRoleAssistant, msgs[1].Role)
	assert.Equal(t, "stub-1", msgs[1].Model)

	// system prompt leads the outbound message list
	require.NotEmpty(t, client.calls)
	assert.Equal(t, llm.RoleSystem, client.calls[0][0].Role)
}

func TestSendMessageValidation(t *testing.T) {
	svc, _ := newTestChatService(t, newFakeSessionStore(), &scriptedClient{}, &recordingAdapter{}, 10)

	cases := []models.SendMessageRequest{
		{VisitorID: "v1", Message: ""},
		{VisitorID: "v1", Message: "   "},
		{VisitorID: "", Message: "hi"},
	}
	for _, req := range cases {
		_, err := svc.SendMessage(context.Background(), req)
		assert.True(t, IsValidationError(err), "request %+v", req)
	}

	long := make([]byte, MaxMessageLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := svc.SendMessage(context.Background(), models.SendMessageRequest{VisitorID: "v1", Message: string(long)})
	assert.True(t, IsValidationError(err))
}

func TestSendMessageRateLimited(t *testing.T) {
	store := newFakeSessionStore()
	client := &scriptedClient{responses: []*llm.Response{{Content: "ok"}}}
	svc, bus := newTestChatService(t, store, client, &recordingAdapter{}, 2)

	limited := make(chan events.Event, 1)
	bus.Subscribe(func(ev events.Event) { limited <- ev }, events.TypeChatRateLimited)

	req := models.SendMessageRequest{VisitorID: "v1", IPHash: "ip1", Message: "hi"}
	for i := 0; i < 2; i++ {
		_, err := svc.SendMessage(context.Background(), req)
		require.NoError(t, err)
	}

	_, err := svc.SendMessage(context.Background(), req)
	var rle *RateLimitedError
	require.ErrorAs(t, err, &rle)
	assert.GreaterOrEqual(t, rle.RetryAfter, 1)

	select {
	case ev := <-limited:
		payload := ev.Payload.(events.RateLimitedPayload)
		assert.Equal(t, "ip1", payload.IPHash)
	case <-time.After(time.Second):
		t.Fatal("expected a chat:rate_limited event")
	}
}

func TestSendMessageObfuscatesOutboundPII(t *testing.T) {
	store := newFakeSessionStore()
	// The model echoes the placeholder it was shown.
	client := &scriptedClient{responses: []*llm.Response{
		{Content: "I will reach out to [EMAIL_1]", TokensUsed: 3},
	}}
	svc, _ := newTestChatService(t, store, client, &recordingAdapter{}, 10)

	resp, err := svc.SendMessage(context.Background(), models.SendMessageRequest{
		VisitorID: "v1", IPHash: "ip1", Message: "Email me at a@b.co",
	})
	require.NoError(t, err)

	// outbound prompt carries the placeholder, not the address
	require.NotEmpty(t, client.calls)
	var userContent string
	for _, m := range client.calls[0] {
		if m.Role == llm.RoleUser {
			userContent = m.Content
		}
	}
	assert.Contains(t, userContent, "[EMAIL_1]")
	assert.NotContains(t, userContent, "a@b.co")

	// the reply is deobfuscated before it reaches the caller
	assert.Equal(t, "I will reach out to a@b.co", resp.Message.Content)

	// the stored user message stays raw
	session := store.sessions["v1"]
	assert.Equal(t, "Email me at a@b.co", store.messages[session.ID][0].Content)
}

func TestSendMessageToolLoop(t *testing.T) {
	store := newFakeSessionStore()
	adapter := &recordingAdapter{}
	client := &scriptedClient{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "list_content", Arguments: `{"type":"project"}`}}, TokensUsed: 5},
		{Content: "You have 0 projects.", TokensUsed: 4, Model: "stub-1"},
	}}
	svc, _ := newTestChatService(t, store, client, adapter, 10)

	resp, err := svc.SendMessage(context.Background(), models.SendMessageRequest{
		VisitorID: "v1", IPHash: "ip1", Message: "How many projects?",
	})
	require.NoError(t, err)
	assert.Equal(t, "You have 0 projects.", resp.Message.Content)
	assert.Equal(t, 9, resp.TokensUsed) // aggregated across both round trips

	require.Len(t, adapter.calls, 1)
	assert.Equal(t, "list_content", adapter.calls[0].Name)

	// second round trip carries the assistant tool-call message and the
	// tool result
	require.Len(t, client.calls, 2)
	second := client.calls[1]
	assert.Equal(t, llm.RoleAssistant, second[len(second)-2].Role)
	assert.Equal(t, llm.RoleTool, second[len(second)-1].Role)
	assert.Equal(t, "call_1", second[len(second)-1].ToolCallID)
}

func TestToolLoopTerminatesAtCap(t *testing.T) {
	store := newFakeSessionStore()
	adapter := &recordingAdapter{}
	// The model never stops asking for tools.
	client := &scriptedClient{responses: []*llm.Response{
		{Content: "thinking", ToolCalls: []llm.ToolCall{{ID: "c", Name: "list_content", Arguments: `{}`}}, TokensUsed: 1},
	}}
	svc, _ := newTestChatService(t, store, client, adapter, 10)

	resp, err := svc.SendMessage(context.Background(), models.SendMessageRequest{
		VisitorID: "v1", IPHash: "ip1", Message: "loop",
	})
	require.NoError(t, err)
	assert.Equal(t, "thinking", resp.Message.Content)

	maxIters := DefaultChatConfig().MaxToolIterations
	assert.Len(t, client.calls, maxIters+1)
	assert.Len(t, adapter.calls, maxIters)
}

func TestSendMessageUpstreamFailure(t *testing.T) {
	store := newFakeSessionStore()
	client := &scriptedClient{err: &llm.Error{Provider: "stub", StatusCode: 401, Message: "bad key"}}
	svc, _ := newTestChatService(t, store, client, &recordingAdapter{}, 10)

	_, err := svc.SendMessage(context.Background(), models.SendMessageRequest{
		VisitorID: "v1", IPHash: "ip1", Message: "hi",
	})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "stub", ue.Provider)

	// non-retryable: exactly one call reached the provider
	assert.Len(t, client.calls, 1)
}

func TestSendMessageCircuitOpen(t *testing.T) {
	store := newFakeSessionStore()
	client := &scriptedClient{err: &llm.Error{Provider: "stub", StatusCode: 401, Message: "down"}}
	svc, _ := newTestChatService(t, store, client, &recordingAdapter{}, 100)

	req := models.SendMessageRequest{VisitorID: "v1", IPHash: "ip1", Message: "hi"}
	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(context.Background(), req)
		require.Error(t, err)
	}

	// breaker is now open: the provider is not invoked again
	before := len(client.calls)
	_, err := svc.SendMessage(context.Background(), req)
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	var oe *breaker.OpenError
	assert.True(t, errors.As(err, &oe))
	assert.Len(t, client.calls, before)
}
