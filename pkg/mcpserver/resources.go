package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/openfolio/openfolio/pkg/models"
)

const resourceScheme = "portfolio://content"

// resourceDescriptor is one entry in the resources/list result.
type resourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType"`
}

// resourceContents is one entry in the resources/read result.
type resourceContents struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	Text     string `json:"text"`
}

func (e *Engine) handleResourcesList(req *Request) *Response {
	resources := []resourceDescriptor{{
		URI:         resourceScheme,
		Name:        "All published content",
		Description: "Every published portfolio item, across all types.",
		MIMEType:    "application/json",
	}}
	for _, t := range models.ContentTypes {
		resources = append(resources, resourceDescriptor{
			URI:      resourceScheme + "/" + string(t),
			Name:     "Published " + string(t) + " content",
			MIMEType: "application/json",
		})
	}
	return newResult(req.ID, map[string]any{"resources": resources})
}

func (e *Engine) handleResourceTemplatesList(req *Request) *Response {
	return newResult(req.ID, map[string]any{
		"resourceTemplates": []map[string]any{{
			"uriTemplate": resourceScheme + "/{type}/{slug}",
			"name":        "Single published content item",
			"mimeType":    "application/json",
		}},
	})
}

type resourceReadParams struct {
	URI string `json:"uri"`
}

func (e *Engine) handleResourcesRead(ctx context.Context, req *Request) *Response {
	var params resourceReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		return newError(req.ID, CodeInvalidParams, "uri is required")
	}

	payload, resp := e.readResource(ctx, req.ID, params.URI)
	if resp != nil {
		return resp
	}

	text, err := json.Marshal(payload)
	if err != nil {
		return newError(req.ID, CodeInternalError, "failed to encode resource")
	}
	return newResult(req.ID, map[string]any{
		"contents": []resourceContents{{
			URI:      params.URI,
			MIMEType: "application/json",
			Text:     string(text),
		}},
	})
}

// readResource resolves a portfolio:// URI to its payload. The second return
// is non-nil on failure.
func (e *Engine) readResource(ctx context.Context, id json.RawMessage, uri string) (any, *Response) {
	rest, ok := strings.CutPrefix(uri, resourceScheme)
	if !ok {
		return nil, newError(id, CodeResourceNotFound, "unknown resource: "+uri)
	}
	rest = strings.Trim(rest, "/")

	switch parts := strings.Split(rest, "/"); {
	case rest == "":
		items, err := e.store.FindPublished(ctx, "")
		if err != nil {
			return nil, e.toolError(id, "resource", err)
		}
		return map[string]any{"items": items}, nil

	case len(parts) == 1:
		contentType := models.ContentType(parts[0])
		if !contentType.IsValid() {
			return nil, newError(id, CodeResourceNotFound, "unknown content type: "+parts[0])
		}
		items, err := e.store.FindPublished(ctx, contentType)
		if err != nil {
			return nil, e.toolError(id, "resource", err)
		}
		return map[string]any{"items": items}, nil

	case len(parts) == 2:
		contentType := models.ContentType(parts[0])
		if !contentType.IsValid() {
			return nil, newError(id, CodeResourceNotFound, "unknown content type: "+parts[0])
		}
		item, err := e.store.FindBySlug(ctx, contentType, parts[1])
		if err != nil {
			return nil, e.toolError(id, "resource", err)
		}
		// Resources expose the published view only.
		if item.Status != models.ContentStatusPublished {
			return nil, newError(id, CodeResourceNotFound, "resource not found")
		}
		return map[string]any{"item": item}, nil

	default:
		return nil, newError(id, CodeResourceNotFound, "unknown resource: "+uri)
	}
}
