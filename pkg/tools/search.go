package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openfolio/openfolio/pkg/models"
	"github.com/openfolio/openfolio/pkg/validation"
)

// searchFields are the top-level (and items-element) data fields matched by
// search_content.
var searchFields = []string{"title", "description", "name", "content", "company", "role"}

// searchContentTool linearly filters published items by a case-insensitive
// substring match.
type searchContentTool struct {
	store ContentStore
}

func (t *searchContentTool) Name() string { return "search_content" }

func (t *searchContentTool) Description() string {
	return "Search published portfolio content by a case-insensitive substring over titles, descriptions, names, tags, and skill items."
}

func (t *searchContentTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"type": {"type": "string", "enum": ["project", "experience", "education", "skill", "about", "contact"]},
			"limit": {"type": "integer", "minimum": 1, "maximum": 50, "default": 10}
		},
		"required": ["query"]
	}`)
}

func (t *searchContentTool) ReadOnly() bool { return true }

func (t *searchContentTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Query string             `json:"query"`
		Type  models.ContentType `json:"type"`
		Limit int                `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if in.Type != "" && !in.Type.IsValid() {
		return nil, fmt.Errorf("unknown content type %q", in.Type)
	}
	if in.Limit <= 0 {
		in.Limit = validation.DefaultSearchHits
	}
	if in.Limit > validation.MaxSearchLimit {
		in.Limit = validation.MaxSearchLimit
	}

	published, err := t.store.FindPublished(ctx, in.Type)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(in.Query)
	var hits []*models.ContentItem
	for _, item := range published {
		if matchesQuery(item.Data, query) {
			hits = append(hits, item)
			if len(hits) == in.Limit {
				break
			}
		}
	}
	if hits == nil {
		hits = []*models.ContentItem{}
	}
	return map[string]any{"items": hits}, nil
}

// matchesQuery checks the known string fields at the top of the data
// document, string elements of data.tags, and the same fields inside
// elements of data.items.
func matchesQuery(raw json.RawMessage, query string) bool {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return false
	}

	if fieldsMatch(data, query) {
		return true
	}

	if tags, ok := data["tags"].([]any); ok {
		for _, tag := range tags {
			if s, ok := tag.(string); ok && strings.Contains(strings.ToLower(s), query) {
				return true
			}
		}
	}

	if items, ok := data["items"].([]any); ok {
		for _, el := range items {
			if m, ok := el.(map[string]any); ok && fieldsMatch(m, query) {
				return true
			}
		}
	}
	return false
}

func fieldsMatch(m map[string]any, query string) bool {
	for _, field := range searchFields {
		if s, ok := m[field].(string); ok && strings.Contains(strings.ToLower(s), query) {
			return true
		}
	}
	return false
}
