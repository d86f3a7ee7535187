// Package tools contains the content tools exposed to the LLM chat loop and
// the MCP surface. Read tools are available on both channels; write tools
// are MCP-only.
package tools

import (
	"context"
	"encoding/json"

	"github.com/openfolio/openfolio/pkg/models"
)

// ContentStore is the repository surface the tools operate on.
type ContentStore interface {
	FindAll(ctx context.Context, q models.ContentListQuery) (*models.ContentListResponse, error)
	FindBySlug(ctx context.Context, contentType models.ContentType, slug string) (*models.ContentItem, error)
	FindPublished(ctx context.Context, contentType models.ContentType) ([]*models.ContentItem, error)
	Create(ctx context.Context, req models.CreateContentRequest, changedBy string) (*models.ContentItem, error)
	UpdateWithHistory(ctx context.Context, id string, updates models.UpdateContentRequest, changedBy string) (*models.ContentItem, error)
	Delete(ctx context.Context, id string, changedBy string) error
	HardDelete(ctx context.Context, id string) error
}

// Tool is one callable content operation.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	// ReadOnly tools are exposed to the chat loop; write tools only to MCP.
	ReadOnly() bool
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// Registry holds the tool set in registration order.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry registers the six content tools against a store.
func NewRegistry(store ContentStore) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	r.register(&listContentTool{store: store})
	r.register(&getContentTool{store: store})
	r.register(&searchContentTool{store: store})
	r.register(&createContentTool{store: store})
	r.register(&updateContentTool{store: store})
	r.register(&deleteContentTool{store: store})
	return r
}

func (r *Registry) register(t Tool) {
	r.order = append(r.order, t.Name())
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns every tool in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// ReadOnly returns the read tools in registration order.
func (r *Registry) ReadOnly() []Tool {
	var out []Tool
	for _, name := range r.order {
		if t := r.tools[name]; t.ReadOnly() {
			out = append(out, t)
		}
	}
	return out
}
