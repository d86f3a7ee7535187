package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"
)

const (
	headerRequestID      = "X-Request-Id"
	headerAdminKey       = "X-Admin-Key"
	headerAdminActor     = "X-Admin-Actor"
	headerIdempotencyKey = "Idempotency-Key"
)

// requestID returns middleware that assigns every response a request id,
// reusing the caller-provided one when present.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			id := c.Request().Header.Get(headerRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(headerRequestID, id)
			return next(c)
		}
	}
}

// requestIDFrom reads the id the requestID middleware stamped on the response.
func requestIDFrom(c *echo.Context) string {
	return c.Response().Header().Get(headerRequestID)
}

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// adminAuth returns middleware that guards the admin group with the shared
// key. Keys are hashed before comparison so the check is constant-time even
// across differing lengths.
func (s *Server) adminAuth() echo.MiddlewareFunc {
	want := sha256.Sum256([]byte(s.cfg.AdminAPIKey))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			got := sha256.Sum256([]byte(c.Request().Header.Get(headerAdminKey)))
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				return s.respondError(c, unauthorized("invalid admin key"))
			}
			return next(c)
		}
	}
}

// adminActor is the audit identity for admin mutations.
func adminActor(c *echo.Context) string {
	if actor := c.Request().Header.Get(headerAdminActor); actor != "" {
		return actor
	}
	return "admin"
}

// corsOrigins returns middleware that answers CORS for the configured
// origins. Unlisted origins get no CORS headers at all.
func corsOrigins(origins []string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			origin := c.Request().Header.Get("Origin")
			if _, ok := allowed[origin]; ok {
				h := c.Response().Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				if c.Request().Method == http.MethodOptions {
					h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					h.Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Key, X-Admin-Actor, Idempotency-Key, X-Request-Id, Mcp-Session-Id")
					h.Set("Access-Control-Max-Age", "600")
					return c.NoContent(http.StatusNoContent)
				}
			}
			return next(c)
		}
	}
}
