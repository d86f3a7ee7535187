// Package mcpserver serves the content tools, resources, and prompts over
// the Model Context Protocol, on stdio and on a streamable HTTP transport
// with server-managed sessions.
package mcpserver

import "encoding/json"

// ProtocolVersion is the MCP revision this server speaks by default.
const ProtocolVersion = "2025-03-26"

// JSON-RPC error codes. The -32000 range carries MCP application errors.
const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
	CodeResourceNotFound = -32001
	CodeValidationFailed = -32002
)

// Request is a JSON-RPC 2.0 request or notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func newResult(id json.RawMessage, result any) *Response {
	data, err := json.Marshal(result)
	if err != nil {
		return newError(id, CodeInternalError, "failed to encode result")
	}
	return &Response{JSONRPC: "2.0", ID: id, Result: data}
}

func newError(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
}
