package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/openfolio/openfolio/pkg/llm"
)

// Adapter maps LLM tool-call invocations onto registry executions. The
// result is always a JSON string for the model's follow-up turn; tool
// failures are reported inside it, never as request-level errors.
type Adapter struct {
	registry *Registry
	// allowWrites gates the write tools; false for the chat loop.
	allowWrites bool
}

// NewAdapter creates an adapter over the registry. Pass allowWrites=true
// only for the MCP surface.
func NewAdapter(registry *Registry, allowWrites bool) *Adapter {
	return &Adapter{registry: registry, allowWrites: allowWrites}
}

// Definitions returns the tool schemas visible through this adapter.
func (a *Adapter) Definitions() []llm.ToolDefinition {
	var ts []Tool
	if a.allowWrites {
		ts = a.registry.All()
	} else {
		ts = a.registry.ReadOnly()
	}
	defs := make([]llm.ToolDefinition, 0, len(ts))
	for _, t := range ts {
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

type toolResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HandleToolCall executes one tool call and returns the JSON result string.
func (a *Adapter) HandleToolCall(ctx context.Context, call llm.ToolCall) string {
	tool, ok := a.registry.Get(call.Name)
	if !ok {
		return encodeResult(toolResult{Success: false, Error: "unknown tool: " + call.Name})
	}
	if !a.allowWrites && !tool.ReadOnly() {
		return encodeResult(toolResult{Success: false, Error: "tool not available on this channel: " + call.Name})
	}

	data, err := tool.Execute(ctx, json.RawMessage(call.Arguments))
	if err != nil {
		slog.Warn("Tool execution failed", "tool", call.Name, "error", err)
		return encodeResult(toolResult{Success: false, Error: err.Error()})
	}
	return encodeResult(toolResult{Success: true, Data: data})
}

func encodeResult(r toolResult) string {
	out, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"failed to encode tool result"}`
	}
	return string(out)
}
