// Package api exposes the HTTP surface: public content reads, the chat
// endpoint, the admin content CRUD, and the health probes.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/openfolio/openfolio/pkg/cache"
	"github.com/openfolio/openfolio/pkg/config"
	"github.com/openfolio/openfolio/pkg/database"
	"github.com/openfolio/openfolio/pkg/models"
)

// ContentStore is the content surface the handlers depend on.
type ContentStore interface {
	FindPublished(ctx context.Context, contentType models.ContentType) ([]*models.ContentItem, error)
	FindBySlug(ctx context.Context, contentType models.ContentType, slug string) (*models.ContentItem, error)
	GetBundle(ctx context.Context) (*models.Bundle, error)
	FindAll(ctx context.Context, q models.ContentListQuery) (*models.ContentListResponse, error)
	Create(ctx context.Context, req models.CreateContentRequest, changedBy string) (*models.ContentItem, error)
	UpdateWithHistory(ctx context.Context, id string, updates models.UpdateContentRequest, changedBy string) (*models.ContentItem, error)
	Delete(ctx context.Context, id string, changedBy string) error
	HardDelete(ctx context.Context, id string) error
	RestoreVersion(ctx context.Context, id string, version int, changedBy string) (*models.ContentItem, error)
	GetHistory(ctx context.Context, id string, limit, offset int) ([]*models.ContentHistory, error)
}

// Chatter runs one chat turn.
type Chatter interface {
	SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.SendMessageResponse, error)
}

// SessionReader is the read-only session surface for the admin endpoints.
type SessionReader interface {
	ListSessions(ctx context.Context, q models.SessionListQuery) ([]*models.ChatSession, error)
	GetMessages(ctx context.Context, sessionID string) ([]*models.ChatMessage, error)
}

// Server is the HTTP server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	cfg        *config.Config
	dbClient   *database.Client
	content    ContentStore
	chat       Chatter
	sessions   SessionReader
	cache      cache.Cache
}

// NewServer wires middleware and routes. The MCP transport is mounted
// separately via SetMCPHandler because it is optional for the API process.
func NewServer(cfg *config.Config, dbClient *database.Client, content ContentStore, chat Chatter, sessions SessionReader, kv cache.Cache) *Server {
	e := echo.New()

	s := &Server{
		echo:     e,
		cfg:      cfg,
		dbClient: dbClient,
		content:  content,
		chat:     chat,
		sessions: sessions,
		cache:    kv,
	}

	e.Use(requestID())
	e.Use(securityHeaders())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(corsOrigins(cfg.CORSOrigins))
	}

	s.registerRoutes(e)
	return s
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/api/health", s.healthHandler)
	e.GET("/api/health/live", s.livenessHandler)
	e.GET("/ready", s.readinessHandler)

	v1 := e.Group("/api/v1")
	v1.GET("/content", s.listContentHandler)
	v1.GET("/content/bundle", s.bundleHandler)
	v1.GET("/content/:type/:slug", s.getContentHandler)
	v1.POST("/chat", s.chatHandler)

	admin := e.Group("/api/v1/admin", s.adminAuth())
	admin.GET("/content", s.adminListContentHandler)
	admin.POST("/content", s.adminCreateContentHandler)
	admin.PUT("/content/:id", s.adminUpdateContentHandler)
	admin.DELETE("/content/:id", s.adminDeleteContentHandler)
	admin.GET("/content/:id/history", s.adminHistoryHandler)
	admin.POST("/content/:id/restore", s.adminRestoreHandler)
	admin.GET("/chat/sessions", s.adminListSessionsHandler)
	admin.GET("/chat/sessions/:id/messages", s.adminSessionMessagesHandler)
}

// SetMCPHandler mounts the MCP streamable HTTP transport under /mcp.
func (s *Server) SetMCPHandler(h http.Handler) {
	wrapped := func(c *echo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
	s.echo.POST("/mcp", wrapped)
	s.echo.GET("/mcp", wrapped)
	s.echo.DELETE("/mcp", wrapped)
}

// Start begins serving on addr. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
