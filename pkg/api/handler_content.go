package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/openfolio/openfolio/pkg/models"
)

// Public cache windows in seconds. The bundle moves slower than individual
// listings, so it gets the longer window.
const (
	contentCacheMaxAge = 60
	bundleCacheMaxAge  = 300
)

// listContentHandler handles GET /api/v1/content?type=.
// Only published, live items are visible here.
func (s *Server) listContentHandler(c *echo.Context) error {
	var contentType models.ContentType
	if v := c.QueryParam("type"); v != "" {
		contentType = models.ContentType(v)
		if !contentType.IsValid() {
			return s.respondError(c, badRequest("invalid content type: "+v))
		}
	}

	items, err := s.content.FindPublished(c.Request().Context(), contentType)
	if err != nil {
		return s.respondError(c, err)
	}

	return s.cachedJSON(c, map[string]any{"items": items}, contentCacheMaxAge)
}

// bundleHandler handles GET /api/v1/content/bundle.
func (s *Server) bundleHandler(c *echo.Context) error {
	bundle, err := s.content.GetBundle(c.Request().Context())
	if err != nil {
		return s.respondError(c, err)
	}
	return s.cachedJSON(c, bundle, bundleCacheMaxAge)
}

// getContentHandler handles GET /api/v1/content/:type/:slug.
// Non-published items 404 so drafts are indistinguishable from absent ones.
func (s *Server) getContentHandler(c *echo.Context) error {
	contentType := models.ContentType(c.Param("type"))
	if !contentType.IsValid() {
		return s.respondError(c, badRequest("invalid content type: "+c.Param("type")))
	}
	slug := c.Param("slug")
	if slug == "" {
		return s.respondError(c, badRequest("slug is required"))
	}

	item, err := s.content.FindBySlug(c.Request().Context(), contentType, slug)
	if err != nil {
		return s.respondError(c, err)
	}
	if item.Status != models.ContentStatusPublished {
		return s.respondError(c, notFound("resource not found"))
	}

	return s.cachedJSON(c, map[string]any{"item": item}, contentCacheMaxAge)
}

// cachedJSON writes payload with an ETag and Cache-Control header, answering
// 304 when the client already holds the current representation.
func (s *Server) cachedJSON(c *echo.Context, payload any, maxAge int) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return s.respondError(c, err)
	}

	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`

	h := c.Response().Header()
	h.Set("ETag", etag)
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))

	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return writeJSONBody(c, http.StatusOK, body)
}

// writeJSONBody writes a pre-encoded JSON document.
func writeJSONBody(c *echo.Context, status int, body []byte) error {
	c.Response().Header().Set("Content-Type", "application/json; charset=UTF-8")
	c.Response().WriteHeader(status)
	_, err := c.Response().Write(body)
	return err
}
