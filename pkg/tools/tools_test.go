package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/openfolio/pkg/llm"
	"github.com/openfolio/openfolio/pkg/models"
)

// fakeStore records calls and serves canned items.
type fakeStore struct {
	published []*models.ContentItem
	listed    *models.ContentListResponse
	item      *models.ContentItem
	created   *models.CreateContentRequest
	updatedID string
	deletedID string
	hardID    string
	err       error

	lastQuery models.ContentListQuery
}

func (f *fakeStore) FindAll(_ context.Context, q models.ContentListQuery) (*models.ContentListResponse, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	if f.listed != nil {
		return f.listed, nil
	}
	return &models.ContentListResponse{Items: []*models.ContentItem{}}, nil
}

func (f *fakeStore) FindBySlug(_ context.Context, _ models.ContentType, _ string) (*models.ContentItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.item, nil
}

func (f *fakeStore) FindPublished(_ context.Context, _ models.ContentType) ([]*models.ContentItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.published, nil
}

func (f *fakeStore) Create(_ context.Context, req models.CreateContentRequest, _ string) (*models.ContentItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = &req
	return &models.ContentItem{ID: "content_x", Type: req.Type, Slug: req.Slug, Version: 1}, nil
}

func (f *fakeStore) UpdateWithHistory(_ context.Context, id string, _ models.UpdateContentRequest, _ string) (*models.ContentItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updatedID = id
	return &models.ContentItem{ID: id, Version: 2}, nil
}

func (f *fakeStore) Delete(_ context.Context, id string, _ string) error {
	f.deletedID = id
	return f.err
}

func (f *fakeStore) HardDelete(_ context.Context, id string) error {
	f.hardID = id
	return f.err
}

func projectItem(slug string, data string) *models.ContentItem {
	return &models.ContentItem{
		ID:     "content_" + slug,
		Type:   models.ContentTypeProject,
		Slug:   slug,
		Status: models.ContentStatusPublished,
		Data:   json.RawMessage(data),
	}
}

func TestRegistryHoldsSixToolsInOrder(t *testing.T) {
	r := NewRegistry(&fakeStore{})

	var names []string
	for _, tool := range r.All() {
		names = append(names, tool.Name())
		assert.NotEmpty(t, tool.Description())
		assert.NotEmpty(t, tool.InputSchema())
	}
	assert.Equal(t, []string{
		"list_content", "get_content", "search_content",
		"create_content", "update_content", "delete_content",
	}, names)

	var readNames []string
	for _, tool := range r.ReadOnly() {
		readNames = append(readNames, tool.Name())
	}
	assert.Equal(t, []string{"list_content", "get_content", "search_content"}, readNames)
}

func TestListContentDefaults(t *testing.T) {
	store := &fakeStore{}
	r := NewRegistry(store)
	tool, _ := r.Get("list_content")

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"type":"project"}`))
	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeProject, store.lastQuery.Type)
	assert.Equal(t, models.ContentStatusPublished, store.lastQuery.Status)
	assert.Equal(t, 50, store.lastQuery.Limit)

	_, err = tool.Execute(context.Background(), json.RawMessage(`{"type":"project","limit":500}`))
	require.NoError(t, err)
	assert.Equal(t, 100, store.lastQuery.Limit)

	_, err = tool.Execute(context.Background(), json.RawMessage(`{"type":"blog"}`))
	assert.Error(t, err)
}

func TestGetContent(t *testing.T) {
	store := &fakeStore{item: projectItem("x", `{"title":"T"}`)}
	r := NewRegistry(store)
	tool, _ := r.Get("get_content")

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"type":"project","slug":"x"}`))
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, store.item, m["item"])

	_, err = tool.Execute(context.Background(), json.RawMessage(`{"type":"project"}`))
	assert.Error(t, err)
}

func TestSearchContentSemantics(t *testing.T) {
	store := &fakeStore{published: []*models.ContentItem{
		projectItem("a", `{"title":"Distributed Cache","description":"LRU"}`),
		projectItem("b", `{"title":"Web App","tags":["golang","cache"]}`),
		projectItem("c", `{"name":"Skills","items":[{"name":"Redis","category":"tool"}]}`),
		projectItem("d", `{"title":"Unrelated"}`),
	}}
	r := NewRegistry(store)
	tool, _ := r.Get("search_content")

	run := func(args string) []any {
		out, err := tool.Execute(context.Background(), json.RawMessage(args))
		require.NoError(t, err)
		items := out.(map[string]any)["items"].([]*models.ContentItem)
		ids := make([]any, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.Slug)
		}
		return ids
	}

	// top-level title, case-insensitive
	assert.Equal(t, []any{"a"}, run(`{"query":"DISTRIBUTED"}`))
	// tags element
	assert.ElementsMatch(t, []any{"a", "b"}, run(`{"query":"cache"}`))
	// items element field
	assert.Equal(t, []any{"c"}, run(`{"query":"redis"}`))
	// limit truncation preserves repository order
	assert.Equal(t, []any{"a"}, run(`{"query":"cache","limit":1}`))
	// no hits
	assert.Empty(t, run(`{"query":"nothing-matches"}`))

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"  "}`))
	assert.Error(t, err)
}

func TestCreateContentDerivesSlug(t *testing.T) {
	store := &fakeStore{}
	r := NewRegistry(store)
	tool, _ := r.Get("create_content")

	_, err := tool.Execute(context.Background(),
		json.RawMessage(`{"type":"project","data":{"title":"My Great Project!","description":"D"}}`))
	require.NoError(t, err)
	require.NotNil(t, store.created)
	assert.Equal(t, "my-great-project", store.created.Slug)

	// name is the fallback derivation source
	_, err = tool.Execute(context.Background(),
		json.RawMessage(`{"type":"skill","data":{"name":"Core Skills","items":[]}}`))
	require.NoError(t, err)
	assert.Equal(t, "core-skills", store.created.Slug)

	// no derivation source
	_, err = tool.Execute(context.Background(),
		json.RawMessage(`{"type":"about","data":{"content":"hi"}}`))
	assert.Error(t, err)
}

func TestDeleteContentSoftAndHard(t *testing.T) {
	store := &fakeStore{}
	r := NewRegistry(store)
	tool, _ := r.Get("delete_content")

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"id":"content_1"}`))
	require.NoError(t, err)
	assert.Equal(t, "content_1", store.deletedID)
	assert.Empty(t, store.hardID)

	_, err = tool.Execute(context.Background(), json.RawMessage(`{"id":"content_2","hard":true}`))
	require.NoError(t, err)
	assert.Equal(t, "content_2", store.hardID)
}

func TestAdapterGatesWriteTools(t *testing.T) {
	store := &fakeStore{}
	chatAdapter := NewAdapter(NewRegistry(store), false)
	mcpAdapter := NewAdapter(NewRegistry(store), true)

	assert.Len(t, chatAdapter.Definitions(), 3)
	assert.Len(t, mcpAdapter.Definitions(), 6)

	out := chatAdapter.HandleToolCall(context.Background(), llm.ToolCall{
		Name: "delete_content", Arguments: `{"id":"content_1"}`,
	})
	var res toolResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not available")
	assert.Empty(t, store.deletedID)

	out = mcpAdapter.HandleToolCall(context.Background(), llm.ToolCall{
		Name: "delete_content", Arguments: `{"id":"content_1"}`,
	})
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "content_1", store.deletedID)
}

func TestAdapterReportsToolErrorsInResult(t *testing.T) {
	store := &fakeStore{err: errors.New("boom")}
	adapter := NewAdapter(NewRegistry(store), false)

	out := adapter.HandleToolCall(context.Background(), llm.ToolCall{
		Name: "list_content", Arguments: `{"type":"project"}`,
	})
	var res toolResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "boom")

	out = adapter.HandleToolCall(context.Background(), llm.ToolCall{Name: "nope", Arguments: `{}`})
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Contains(t, res.Error, "unknown tool")
}
