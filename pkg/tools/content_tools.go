package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openfolio/openfolio/pkg/models"
	"github.com/openfolio/openfolio/pkg/validation"
)

// listContentTool lists content items of one type.
type listContentTool struct {
	store ContentStore
}

func (t *listContentTool) Name() string { return "list_content" }

func (t *listContentTool) Description() string {
	return "List portfolio content items of a given type. Returns published items unless another status is requested."
}

func (t *listContentTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"type": {"type": "string", "enum": ["project", "experience", "education", "skill", "about", "contact"]},
			"status": {"type": "string", "enum": ["draft", "published", "archived"], "default": "published"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100, "default": 50}
		},
		"required": ["type"]
	}`)
}

func (t *listContentTool) ReadOnly() bool { return true }

func (t *listContentTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Type   models.ContentType   `json:"type"`
		Status models.ContentStatus `json:"status"`
		Limit  int                  `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if !in.Type.IsValid() {
		return nil, fmt.Errorf("unknown content type %q", in.Type)
	}
	if in.Status == "" {
		in.Status = models.ContentStatusPublished
	}
	if !in.Status.IsValid() {
		return nil, fmt.Errorf("unknown status %q", in.Status)
	}
	if in.Limit <= 0 {
		in.Limit = validation.DefaultListLimit
	}
	if in.Limit > validation.MaxListLimit {
		in.Limit = validation.MaxListLimit
	}

	resp, err := t.store.FindAll(ctx, models.ContentListQuery{
		Type:   in.Type,
		Status: in.Status,
		Limit:  in.Limit,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"items": resp.Items}, nil
}

// getContentTool fetches one item by (type, slug).
type getContentTool struct {
	store ContentStore
}

func (t *getContentTool) Name() string { return "get_content" }

func (t *getContentTool) Description() string {
	return "Get a single portfolio content item by its type and slug."
}

func (t *getContentTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"type": {"type": "string", "enum": ["project", "experience", "education", "skill", "about", "contact"]},
			"slug": {"type": "string"}
		},
		"required": ["type", "slug"]
	}`)
}

func (t *getContentTool) ReadOnly() bool { return true }

func (t *getContentTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Type models.ContentType `json:"type"`
		Slug string             `json:"slug"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if !in.Type.IsValid() {
		return nil, fmt.Errorf("unknown content type %q", in.Type)
	}
	if in.Slug == "" {
		return nil, fmt.Errorf("slug is required")
	}

	item, err := t.store.FindBySlug(ctx, in.Type, in.Slug)
	if err != nil {
		return nil, err
	}
	return map[string]any{"item": item}, nil
}

// createContentTool creates a new item; MCP-only.
type createContentTool struct {
	store ContentStore
}

func (t *createContentTool) Name() string { return "create_content" }

func (t *createContentTool) Description() string {
	return "Create a new portfolio content item. The slug is derived from data.title or data.name when omitted."
}

func (t *createContentTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"type": {"type": "string", "enum": ["project", "experience", "education", "skill", "about", "contact"]},
			"slug": {"type": "string", "pattern": "^[a-z0-9-]{1,100}$"},
			"data": {"type": "object"},
			"status": {"type": "string", "enum": ["draft", "published", "archived"], "default": "draft"},
			"sortOrder": {"type": "integer"}
		},
		"required": ["type", "data"]
	}`)
}

func (t *createContentTool) ReadOnly() bool { return false }

func (t *createContentTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in models.CreateContentRequest
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if in.Slug == "" {
		source, _ := in.Data["title"].(string)
		if source == "" {
			source, _ = in.Data["name"].(string)
		}
		if source == "" {
			return nil, fmt.Errorf("slug is required when data has neither title nor name")
		}
		in.Slug = validation.DeriveSlug(source)
	}

	item, err := t.store.Create(ctx, in, "mcp")
	if err != nil {
		return nil, err
	}
	return map[string]any{"item": item}, nil
}

// updateContentTool applies a partial update; MCP-only.
type updateContentTool struct {
	store ContentStore
}

func (t *updateContentTool) Name() string { return "update_content" }

func (t *updateContentTool) Description() string {
	return "Update an existing portfolio content item by id. Omitted fields are left unchanged."
}

func (t *updateContentTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"id": {"type": "string"},
			"slug": {"type": "string", "pattern": "^[a-z0-9-]{1,100}$"},
			"data": {"type": "object"},
			"status": {"type": "string", "enum": ["draft", "published", "archived"]},
			"sortOrder": {"type": "integer"}
		},
		"required": ["id"]
	}`)
}

func (t *updateContentTool) ReadOnly() bool { return false }

func (t *updateContentTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		ID string `json:"id"`
		models.UpdateContentRequest
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if in.ID == "" {
		return nil, fmt.Errorf("id is required")
	}

	item, err := t.store.UpdateWithHistory(ctx, in.ID, in.UpdateContentRequest, "mcp")
	if err != nil {
		return nil, err
	}
	return map[string]any{"item": item}, nil
}

// deleteContentTool soft-deletes (or hard-deletes) an item; MCP-only.
type deleteContentTool struct {
	store ContentStore
}

func (t *deleteContentTool) Name() string { return "delete_content" }

func (t *deleteContentTool) Description() string {
	return "Delete a portfolio content item by id. Soft delete by default; hard delete removes the row and its history."
}

func (t *deleteContentTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"id": {"type": "string"},
			"hard": {"type": "boolean", "default": false}
		},
		"required": ["id"]
	}`)
}

func (t *deleteContentTool) ReadOnly() bool { return false }

func (t *deleteContentTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		ID   string `json:"id"`
		Hard bool   `json:"hard"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if in.ID == "" {
		return nil, fmt.Errorf("id is required")
	}

	var err error
	if in.Hard {
		err = t.store.HardDelete(ctx, in.ID)
	} else {
		err = t.store.Delete(ctx, in.ID, "mcp")
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"deleted": true, "id": in.ID}, nil
}
