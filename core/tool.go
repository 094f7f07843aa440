// Package core holds the contract shared by everything registered on the
// MCP server as a tool.
package core

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// Tool pairs the tool advertised to MCP clients with the handler that serves
// its calls.
type Tool interface {
	Name() string
	Handle() mcp.Tool
	Handler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}
