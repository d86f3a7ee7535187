package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/openfolio/pkg/models"
)

func publishedProject(slug string) *models.ContentItem {
	return &models.ContentItem{
		ID:     "content_" + slug,
		Type:   models.ContentTypeProject,
		Slug:   slug,
		Status: models.ContentStatusPublished,
		Data:   json.RawMessage(`{"title":"T"}`),
	}
}

func TestListContent(t *testing.T) {
	content := &fakeContent{published: []*models.ContentItem{publishedProject("a"), publishedProject("b")}}
	s := newTestServer(t, testServerOpts{content: content})

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/content?type=project", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	var body struct {
		Items []*models.ContentItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Items, 2)
}

func TestListContentRejectsUnknownType(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/content?type=blog", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, codeValidation, env.Error.Code)
	assert.Contains(t, env.Error.Message, "blog")
	assert.NotEmpty(t, env.Error.RequestID)
}

func TestContentETagRoundTrip(t *testing.T) {
	content := &fakeContent{published: []*models.ContentItem{publishedProject("a")}}
	s := newTestServer(t, testServerOpts{content: content})

	first := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/content", nil))
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/content", nil)
	req.Header.Set("If-None-Match", etag)
	second := s.do(req)
	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.Bytes())
}

func TestBundle(t *testing.T) {
	content := &fakeContent{bundle: &models.Bundle{
		Projects: []*models.ContentItem{publishedProject("a")},
		About:    publishedProject("about"),
	}}
	s := newTestServer(t, testServerOpts{content: content})

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/content/bundle", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))

	var bundle models.Bundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Len(t, bundle.Projects, 1)
	require.NotNil(t, bundle.About)
}

func TestGetContentBySlug(t *testing.T) {
	t.Run("published item", func(t *testing.T) {
		content := &fakeContent{item: publishedProject("x")}
		s := newTestServer(t, testServerOpts{content: content})

		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/content/project/x", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Item *models.ContentItem `json:"item"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "x", body.Item.Slug)
	})

	t.Run("draft is masked as 404", func(t *testing.T) {
		draft := publishedProject("x")
		draft.Status = models.ContentStatusDraft
		s := newTestServer(t, testServerOpts{content: &fakeContent{item: draft}})

		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/content/project/x", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)

		var env errorEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, codeNotFound, env.Error.Code)
	})

	t.Run("invalid type", func(t *testing.T) {
		s := newTestServer(t, testServerOpts{})
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/content/blog/x", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
