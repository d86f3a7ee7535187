package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/openfolio/openfolio/pkg/services"
	"github.com/openfolio/openfolio/pkg/tools"
	"github.com/openfolio/openfolio/pkg/validation"
	"github.com/openfolio/openfolio/pkg/version"
)

// Engine dispatches MCP JSON-RPC methods. One engine serves every
// transport and session; it holds no per-session state.
type Engine struct {
	registry *tools.Registry
	store    tools.ContentStore
}

// NewEngine builds the shared dispatcher.
func NewEngine(registry *tools.Registry, store tools.ContentStore) *Engine {
	return &Engine{registry: registry, store: store}
}

// Handle answers one request. Notifications return nil.
func (e *Engine) Handle(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != "2.0" {
		return newError(req.ID, CodeInvalidRequest, "invalid jsonrpc version")
	}

	if req.IsNotification() {
		// Notifications (e.g. notifications/initialized) are accepted and
		// dropped; this server initiates no client-bound messages.
		return nil
	}

	switch req.Method {
	case "initialize":
		return e.handleInitialize(req)
	case "ping":
		return newResult(req.ID, map[string]any{})
	case "tools/list":
		return e.handleToolsList(req)
	case "tools/call":
		return e.handleToolsCall(ctx, req)
	case "resources/list":
		return e.handleResourcesList(req)
	case "resources/templates/list":
		return e.handleResourceTemplatesList(req)
	case "resources/read":
		return e.handleResourcesRead(ctx, req)
	case "prompts/list":
		return e.handlePromptsList(req)
	case "prompts/get":
		return e.handlePromptsGet(ctx, req)
	default:
		return newError(req.ID, CodeMethodNotFound, "method not found: "+req.Method)
	}
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

func (e *Engine) handleInitialize(req *Request) *Response {
	// Echo the client's requested revision; this server has no
	// version-dependent behavior across the supported revisions.
	protocol := ProtocolVersion
	var params initializeParams
	if err := json.Unmarshal(req.Params, &params); err == nil && params.ProtocolVersion != "" {
		protocol = params.ProtocolVersion
	}

	return newResult(req.ID, map[string]any{
		"protocolVersion": protocol,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
			"prompts":   map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    version.AppName + "-mcp",
			"version": version.GitCommit,
		},
	})
}

// toolDescriptor is one entry in the tools/list result.
type toolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

func (e *Engine) handleToolsList(req *Request) *Response {
	all := e.registry.All()
	descriptors := make([]toolDescriptor, 0, len(all))
	for _, t := range all {
		descriptors = append(descriptors, toolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return newResult(req.ID, map[string]any{"tools": descriptors})
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (e *Engine) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return newError(req.ID, CodeInvalidParams, "invalid tool call parameters")
	}

	tool, ok := e.registry.Get(params.Name)
	if !ok {
		return newError(req.ID, CodeMethodNotFound, "unknown tool: "+params.Name)
	}

	args := params.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	out, err := tool.Execute(ctx, args)
	if err != nil {
		return e.toolError(req.ID, params.Name, err)
	}

	text, err := json.Marshal(out)
	if err != nil {
		return newError(req.ID, CodeInternalError, "failed to encode tool result")
	}
	return newResult(req.ID, map[string]any{
		"content": []map[string]any{{"type": "text", "text": string(text)}},
	})
}

func (e *Engine) toolError(id json.RawMessage, name string, err error) *Response {
	var validErr *validation.Error
	if errors.As(err, &validErr) {
		return newError(id, CodeValidationFailed, validErr.Error())
	}
	if errors.Is(err, services.ErrNotFound) {
		return newError(id, CodeResourceNotFound, "resource not found")
	}
	if errors.Is(err, services.ErrConflict) || errors.Is(err, services.ErrInvalidInput) {
		return newError(id, CodeValidationFailed, err.Error())
	}

	slog.Error("Tool execution failed", "tool", name, "error", err)
	return newError(id, CodeInternalError, err.Error())
}
