package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/openfolio/openfolio/pkg/models"
)

// idempotencyTTL is how long a created resource is replayed for its key.
const idempotencyTTL = 24 * time.Hour

func idempotencyCacheKey(key string) string { return "idempotency:" + key }

// adminListContentHandler handles GET /api/v1/admin/content.
// Unlike the public listing, this sees drafts, archived items, and with
// includeDeleted=true soft-deleted rows.
func (s *Server) adminListContentHandler(c *echo.Context) error {
	q := models.ContentListQuery{}

	if v := c.QueryParam("type"); v != "" {
		q.Type = models.ContentType(v)
		if !q.Type.IsValid() {
			return s.respondError(c, badRequest("invalid content type: "+v))
		}
	}
	if v := c.QueryParam("status"); v != "" {
		q.Status = models.ContentStatus(v)
		if !q.Status.IsValid() {
			return s.respondError(c, badRequest("invalid status: "+v))
		}
	}
	q.IncludeDeleted = c.QueryParam("includeDeleted") == "true"

	var err error
	if q.Limit, err = intQueryParam(c, "limit", 0); err != nil {
		return s.respondError(c, err)
	}
	if q.Offset, err = intQueryParam(c, "offset", 0); err != nil {
		return s.respondError(c, err)
	}

	result, err := s.content.FindAll(c.Request().Context(), q)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// adminCreateContentHandler handles POST /api/v1/admin/content.
// When an Idempotency-Key header is present, a repeat of the same request
// replays the originally created item instead of creating a duplicate.
func (s *Server) adminCreateContentHandler(c *echo.Context) error {
	idemKey := c.Request().Header.Get(headerIdempotencyKey)
	if idemKey != "" && s.cache != nil {
		if cached, err := s.cache.Get(c.Request().Context(), idempotencyCacheKey(idemKey)); err == nil {
			c.Response().Header().Set("X-Idempotent-Replay", "true")
			return writeJSONBody(c, http.StatusCreated, []byte(cached))
		}
	}

	var req models.CreateContentRequest
	if err := c.Bind(&req); err != nil {
		return s.respondError(c, badRequest("invalid request body"))
	}

	item, err := s.content.Create(c.Request().Context(), req, adminActor(c))
	if err != nil {
		return s.respondError(c, err)
	}

	if idemKey != "" && s.cache != nil {
		if body, err := json.Marshal(item); err == nil {
			if err := s.cache.Set(c.Request().Context(), idempotencyCacheKey(idemKey), string(body), idempotencyTTL); err != nil {
				slog.Warn("Failed to store idempotency record", "key", idemKey, "error", err)
			}
		}
	}

	return c.JSON(http.StatusCreated, item)
}

// adminUpdateContentHandler handles PUT /api/v1/admin/content/:id.
func (s *Server) adminUpdateContentHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return s.respondError(c, badRequest("content id is required"))
	}

	var req models.UpdateContentRequest
	if err := c.Bind(&req); err != nil {
		return s.respondError(c, badRequest("invalid request body"))
	}

	item, err := s.content.UpdateWithHistory(c.Request().Context(), id, req, adminActor(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

// adminDeleteContentHandler handles DELETE /api/v1/admin/content/:id?hard=.
// The default is a soft delete; hard=true removes the row and its history.
func (s *Server) adminDeleteContentHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return s.respondError(c, badRequest("content id is required"))
	}

	var err error
	if c.QueryParam("hard") == "true" {
		err = s.content.HardDelete(c.Request().Context(), id)
	} else {
		err = s.content.Delete(c.Request().Context(), id, adminActor(c))
	}
	if err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// adminHistoryHandler handles GET /api/v1/admin/content/:id/history.
func (s *Server) adminHistoryHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return s.respondError(c, badRequest("content id is required"))
	}

	limit, err := intQueryParam(c, "limit", 0)
	if err != nil {
		return s.respondError(c, err)
	}
	offset, err := intQueryParam(c, "offset", 0)
	if err != nil {
		return s.respondError(c, err)
	}

	entries, err := s.content.GetHistory(c.Request().Context(), id, limit, offset)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": entries})
}

// RestoreContentRequest is the body of POST /api/v1/admin/content/:id/restore.
type RestoreContentRequest struct {
	Version int `json:"version"`
}

// adminRestoreHandler handles POST /api/v1/admin/content/:id/restore.
func (s *Server) adminRestoreHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return s.respondError(c, badRequest("content id is required"))
	}

	var req RestoreContentRequest
	if err := c.Bind(&req); err != nil {
		return s.respondError(c, badRequest("invalid request body"))
	}
	if req.Version <= 0 {
		return s.respondError(c, badRequest("version must be a positive integer"))
	}

	item, err := s.content.RestoreVersion(c.Request().Context(), id, req.Version, adminActor(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

// intQueryParam parses an optional non-negative integer query parameter.
func intQueryParam(c *echo.Context, name string, defaultVal int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("invalid " + name + ": must be a non-negative integer")
	}
	return n, nil
}
