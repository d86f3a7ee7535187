package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openfolio/openfolio/pkg/cache"
	"github.com/openfolio/openfolio/pkg/config"
	"github.com/openfolio/openfolio/pkg/models"
)

const testAdminKey = "0123456789abcdef0123456789abcdef"

// fakeContent is an in-memory ContentStore that records the last call.
type fakeContent struct {
	published []*models.ContentItem
	item      *models.ContentItem
	bundle    *models.Bundle
	listed    *models.ContentListResponse
	history   []*models.ContentHistory
	err       error

	createCalls int
	lastQuery   models.ContentListQuery
	lastCreate  models.CreateContentRequest
	lastUpdate  models.UpdateContentRequest
	lastActor   string
	deletedID   string
	hardID      string
	restoredVer int
}

func (f *fakeContent) FindPublished(_ context.Context, _ models.ContentType) ([]*models.ContentItem, error) {
	return f.published, f.err
}

func (f *fakeContent) FindBySlug(_ context.Context, _ models.ContentType, _ string) (*models.ContentItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.item, nil
}

func (f *fakeContent) GetBundle(_ context.Context) (*models.Bundle, error) {
	return f.bundle, f.err
}

func (f *fakeContent) FindAll(_ context.Context, q models.ContentListQuery) (*models.ContentListResponse, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	if f.listed != nil {
		return f.listed, nil
	}
	return &models.ContentListResponse{Items: []*models.ContentItem{}}, nil
}

func (f *fakeContent) Create(_ context.Context, req models.CreateContentRequest, changedBy string) (*models.ContentItem, error) {
	f.createCalls++
	if f.err != nil {
		return nil, f.err
	}
	f.lastCreate = req
	f.lastActor = changedBy
	return &models.ContentItem{ID: "content_new", Type: req.Type, Slug: req.Slug, Status: models.ContentStatusDraft, Version: 1}, nil
}

func (f *fakeContent) UpdateWithHistory(_ context.Context, id string, updates models.UpdateContentRequest, changedBy string) (*models.ContentItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastUpdate = updates
	f.lastActor = changedBy
	return &models.ContentItem{ID: id, Version: 2}, nil
}

func (f *fakeContent) Delete(_ context.Context, id string, changedBy string) error {
	f.deletedID = id
	f.lastActor = changedBy
	return f.err
}

func (f *fakeContent) HardDelete(_ context.Context, id string) error {
	f.hardID = id
	return f.err
}

func (f *fakeContent) RestoreVersion(_ context.Context, id string, version int, changedBy string) (*models.ContentItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.restoredVer = version
	f.lastActor = changedBy
	return &models.ContentItem{ID: id, Version: version + 1}, nil
}

func (f *fakeContent) GetHistory(_ context.Context, _ string, _, _ int) ([]*models.ContentHistory, error) {
	return f.history, f.err
}

// fakeChatter returns a canned response or error.
type fakeChatter struct {
	resp    *models.SendMessageResponse
	err     error
	lastReq models.SendMessageRequest
}

func (f *fakeChatter) SendMessage(_ context.Context, req models.SendMessageRequest) (*models.SendMessageResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// fakeSessions serves canned session listings.
type fakeSessions struct {
	sessions []*models.ChatSession
	messages []*models.ChatMessage
	err      error
}

func (f *fakeSessions) ListSessions(_ context.Context, _ models.SessionListQuery) ([]*models.ChatSession, error) {
	return f.sessions, f.err
}

func (f *fakeSessions) GetMessages(_ context.Context, _ string) ([]*models.ChatMessage, error) {
	return f.messages, f.err
}

type testServerOpts struct {
	content  *fakeContent
	chat     *fakeChatter
	sessions *fakeSessions
	cfg      func(*config.Config)
}

func newTestServer(t *testing.T, opts testServerOpts) *Server {
	t.Helper()
	if opts.content == nil {
		opts.content = &fakeContent{}
	}
	if opts.chat == nil {
		opts.chat = &fakeChatter{resp: &models.SendMessageResponse{SessionID: "sess_1"}}
	}
	if opts.sessions == nil {
		opts.sessions = &fakeSessions{}
	}

	cfg := &config.Config{
		Env:         config.EnvTest,
		AdminAPIKey: testAdminKey,
		IPHashSalt:  "salt",
		ChatTimeout: 5 * time.Second,
	}
	if opts.cfg != nil {
		opts.cfg(cfg)
	}

	kv := cache.NewMemory()
	t.Cleanup(func() { _ = kv.Close() })

	return NewServer(cfg, nil, opts.content, opts.chat, opts.sessions, kv)
}

func (s *Server) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func adminReq(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerAdminKey, testAdminKey)
	return req
}
