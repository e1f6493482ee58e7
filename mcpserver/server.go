// Package mcpserver serves a toolset over the Model Context Protocol.
//
// Every tool in the set is registered with its input schema and
// annotations. A call's output lines are returned as tagged text content
// ("[stdout] OK"), followed by a status line; failures set IsError so the
// client sees the stage that failed and its diagnostics.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/minachain/sandbox"
	"github.com/jonwraymond/minachain/toolset"
)

// Default implementation identity.
const (
	DefaultName    = "minachain"
	DefaultVersion = "v0.1.0"
)

// Config configures the server.
type Config struct {
	// Name is the implementation name reported to clients.
	// Default: DefaultName
	Name string

	// Version is the implementation version reported to clients.
	// Default: DefaultVersion
	Version string

	// Logger is an optional logger for server events.
	Logger sandbox.Logger
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
}

// New returns an MCP server exposing every tool in ts.
func New(ts *toolset.Toolset, cfg Config) *mcp.Server {
	cfg.applyDefaults()

	server := mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil)
	for _, def := range ts.Defs() {
		tool := def.Tool().Tool
		server.AddTool(&tool, handler(ts, def.Name, cfg.Logger))
	}
	return server
}

// Serve runs server over stdin and stdout until the client disconnects or
// ctx is canceled.
func Serve(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

func handler(ts *toolset.Toolset, name string, logger sandbox.Logger) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if raw := req.Params.Arguments; len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return errorResult(fmt.Errorf("%w: %v", toolset.ErrInvalidArgument, err)), nil
			}
		}

		res, err := ts.Execute(ctx, name, args)
		if err != nil && logger != nil {
			logger.Warn("mcp tool call failed", "tool", name, "error", err)
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: render(res)}},
			StructuredContent: res,
			IsError:           err != nil,
		}, nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "error: " + err.Error()}},
		IsError: true,
	}
}

// render formats a result as tagged output lines and a status line.
func render(res toolset.Result) string {
	var b strings.Builder
	for _, line := range res.Output {
		b.WriteString(line.String())
		b.WriteByte('\n')
	}
	if res.Error != "" {
		fmt.Fprintf(&b, "error: %s", res.Error)
		return b.String()
	}
	fmt.Fprintf(&b, "exit status %d", res.ExitCode)
	if res.Path != "" {
		fmt.Fprintf(&b, ", artifact %s", res.Path)
	}
	return b.String()
}
