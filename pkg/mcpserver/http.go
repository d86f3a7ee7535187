package mcpserver

import (
	"encoding/json"
	"net/http"
)

const headerSessionID = "Mcp-Session-Id"

// HTTPHandler is the streamable HTTP transport: POST carries JSON-RPC,
// GET opens an SSE stream bound to a session, DELETE tears a session down.
type HTTPHandler struct {
	engine   *Engine
	sessions *SessionManager
}

// NewHTTPHandler mounts the engine behind the streamable transport.
func NewHTTPHandler(engine *Engine, sessions *SessionManager) *HTTPHandler {
	return &HTTPHandler{engine: engine, sessions: sessions}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, http.StatusOK, newError(nil, CodeParseError, "invalid JSON"))
		return
	}

	// initialize allocates the session; everything else must present one.
	if req.Method == "initialize" && r.Header.Get(headerSessionID) == "" {
		session := h.sessions.Create()
		w.Header().Set(headerSessionID, session.ID)
		writeResponse(w, http.StatusOK, h.engine.Handle(r.Context(), &req))
		return
	}

	sessionID := r.Header.Get(headerSessionID)
	if sessionID == "" {
		writeResponse(w, http.StatusBadRequest, newError(req.ID, CodeInvalidRequest, "missing Mcp-Session-Id header"))
		return
	}
	if !h.sessions.Touch(sessionID) {
		// 404 tells a conforming client to re-initialize.
		writeResponse(w, http.StatusNotFound, newError(req.ID, CodeResourceNotFound, "session not found"))
		return
	}

	resp := h.engine.Handle(r.Context(), &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeResponse(w, http.StatusOK, resp)
}

// handleGet opens the server-initiated notification stream. This server
// currently emits none, so the stream idles until the session ends or the
// client disconnects.
func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(headerSessionID)
	if sessionID == "" {
		http.Error(w, "missing Mcp-Session-Id header", http.StatusBadRequest)
		return
	}
	session, ok := h.sessions.Get(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	select {
	case <-r.Context().Done():
	case <-session.closed:
	}
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(headerSessionID)
	if sessionID == "" {
		http.Error(w, "missing Mcp-Session-Id header", http.StatusBadRequest)
		return
	}
	h.sessions.Delete(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func writeResponse(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
