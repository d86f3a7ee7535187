package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/openfolio/openfolio/pkg/models"
)

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	VisitorID string `json:"visitorId"`
}

// chatHandler handles POST /api/v1/chat. The whole turn, including LLM
// retries and the tool loop, runs under the chat deadline.
func (s *Server) chatHandler(c *echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return s.respondError(c, badRequest("invalid request body"))
	}

	ctx := c.Request().Context()
	if s.cfg.ChatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ChatTimeout)
		defer cancel()
	}

	resp, err := s.chat.SendMessage(ctx, models.SendMessageRequest{
		VisitorID: req.VisitorID,
		Message:   req.Message,
		IPHash:    s.hashClientIP(c.Request()),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// hashClientIP produces the salted client address hash used for rate
// limiting and session records. Raw addresses are never persisted.
func (s *Server) hashClientIP(r *http.Request) string {
	sum := sha256.Sum256([]byte(s.cfg.IPHashSalt + ":" + clientIP(r)))
	return hex.EncodeToString(sum[:])
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop is the client.
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
