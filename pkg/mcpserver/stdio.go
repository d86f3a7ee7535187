package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// maxStdioMessage bounds a single JSON-RPC line on the stdio transport.
const maxStdioMessage = 4 << 20

// StdioRunner serves one peer over newline-delimited JSON-RPC on
// stdin/stdout, the MCP stdio framing. It runs until EOF or ctx cancel.
type StdioRunner struct {
	engine *Engine
	in     io.Reader
	out    io.Writer
}

// NewStdioRunner wires the engine to a byte stream pair.
func NewStdioRunner(engine *Engine, in io.Reader, out io.Writer) *StdioRunner {
	return &StdioRunner{engine: engine, in: in, out: out}
}

// Run processes requests sequentially. A single peer drives this transport,
// so there is no concurrency here.
func (r *StdioRunner) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdioMessage)
	encoder := json.NewEncoder(r.out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if err := encoder.Encode(newError(nil, CodeParseError, "invalid JSON")); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
			continue
		}

		resp := r.engine.Handle(ctx, &req)
		if resp == nil {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
	return scanner.Err()
}
