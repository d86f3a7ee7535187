package mcpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) *HTTPHandler {
	t.Helper()
	sessions := NewSessionManager(DefaultIdleTTL)
	t.Cleanup(sessions.Close)
	return NewHTTPHandler(newTestEngine(&fakeStore{}), sessions)
}

func postRPC(h http.Handler, sessionID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(headerSessionID, sessionID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeRPC(t *testing.T, rec *httptest.ResponseRecorder) *Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp
}

const initializeBody = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`

func TestHTTPInitializeAllocatesSession(t *testing.T) {
	h := newTestHandler(t)

	rec := postRPC(h, "", initializeBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerSessionID))
	assert.Equal(t, 1, h.sessions.Len())

	resp := decodeRPC(t, rec)
	require.Nil(t, resp.Error)
}

func TestHTTPRequiresSession(t *testing.T) {
	h := newTestHandler(t)

	rec := postRPC(h, "", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeRPC(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestHTTPUnknownSession(t *testing.T) {
	h := newTestHandler(t)

	rec := postRPC(h, "no-such-session", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeRPC(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeResourceNotFound, resp.Error.Code)
}

func TestHTTPSessionLifecycle(t *testing.T) {
	h := newTestHandler(t)

	sessionID := postRPC(h, "", initializeBody).Header().Get(headerSessionID)
	require.NotEmpty(t, sessionID)

	rec := postRPC(h, sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeRPC(t, rec)
	require.Nil(t, resp.Error)
	assert.Contains(t, string(resp.Result), "list_content")

	// Notifications carry no id and get no body back.
	rec = postRPC(h, sessionID, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set(headerSessionID, sessionID)
	del := httptest.NewRecorder()
	h.ServeHTTP(del, req)
	assert.Equal(t, http.StatusNoContent, del.Code)

	rec = postRPC(h, sessionID, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPParseError(t *testing.T) {
	h := newTestHandler(t)

	rec := postRPC(h, "", `{not json`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeRPC(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}

func TestHTTPMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/mcp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST, GET, DELETE", rec.Header().Get("Allow"))
}

func TestHTTPSSEStreamEndsWithSession(t *testing.T) {
	h := newTestHandler(t)
	session := h.sessions.Create()

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set(headerSessionID, session.ID)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	// The stream stays open until the session is torn down.
	select {
	case <-done:
		t.Fatal("stream ended before session deletion")
	case <-time.After(50 * time.Millisecond):
	}

	h.sessions.Delete(session.ID)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end after session deletion")
	}

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestHTTPSSERequiresKnownSession(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set(headerSessionID, "gone")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionReaper(t *testing.T) {
	sessions := NewSessionManager(30 * time.Minute)
	defer sessions.Close()

	fresh := sessions.Create()
	stale := sessions.Create()

	sessions.mu.Lock()
	sessions.sessions[stale.ID].LastSeen = time.Now().Add(-time.Hour)
	sessions.mu.Unlock()

	sessions.reap(time.Now())

	assert.Equal(t, 1, sessions.Len())
	assert.True(t, sessions.Touch(fresh.ID))
	assert.False(t, sessions.Touch(stale.ID))

	select {
	case <-stale.closed:
	default:
		t.Fatal("reaped session channel not closed")
	}
}
