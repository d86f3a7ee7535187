package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/openfolio/openfolio/pkg/models"
)

// adminListSessionsHandler handles GET /api/v1/admin/chat/sessions.
func (s *Server) adminListSessionsHandler(c *echo.Context) error {
	q := models.SessionListQuery{}

	if v := c.QueryParam("status"); v != "" {
		switch models.SessionStatus(v) {
		case models.SessionStatusActive, models.SessionStatusEnded, models.SessionStatusExpired:
			q.Status = models.SessionStatus(v)
		default:
			return s.respondError(c, badRequest("invalid status: "+v))
		}
	}

	var err error
	if q.Limit, err = intQueryParam(c, "limit", 0); err != nil {
		return s.respondError(c, err)
	}
	if q.Offset, err = intQueryParam(c, "offset", 0); err != nil {
		return s.respondError(c, err)
	}

	sessions, err := s.sessions.ListSessions(c.Request().Context(), q)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}

// adminSessionMessagesHandler handles GET /api/v1/admin/chat/sessions/:id/messages.
func (s *Server) adminSessionMessagesHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return s.respondError(c, badRequest("session id is required"))
	}

	messages, err := s.sessions.GetMessages(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": messages})
}
