// Package middleware provides tool handler middleware for the MCP server.
package middleware

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Logging logs every tool call with its duration and outcome.
func Logging(logger *log.Logger) server.ToolHandlerMiddleware {
	logger = logger.WithPrefix("tools")

	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()

			result, err := next(ctx, request)

			fields := []any{"tool", request.Params.Name, "duration", time.Since(start)}

			switch {
			case err != nil:
				logger.Warn("Tool call refused", append(fields, "error", err)...)
			case result != nil && result.IsError:
				logger.Info("Tool call completed with error result", fields...)
			default:
				logger.Debug("Tool call completed", fields...)
			}

			return result, err
		}
	}
}
