package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/patrickmn/go-cache"
	"github.com/theapemachine/mcp-server-sentry/core"
)

// Resolver finds the dispatcher serving the session a request belongs to.
type Resolver func(ctx context.Context) (*Dispatcher, error)

// StaticResolver serves every request with the same dispatcher, as in stdio
// mode where the process is the session.
func StaticResolver(d *Dispatcher) Resolver {
	return func(context.Context) (*Dispatcher, error) {
		return d, nil
	}
}

// Sessions builds one dispatcher per session found on the request context
// and keeps it for the lifetime of the session.
type Sessions struct {
	dispatchers *cache.Cache
	build       func(SessionContext) *Dispatcher
}

// NewSessions returns a session cache whose entries expire after ttl of
// inactivity.
func NewSessions(ttl time.Duration, build func(SessionContext) *Dispatcher) *Sessions {
	return &Sessions{
		dispatchers: cache.New(ttl, 10*time.Minute),
		build:       build,
	}
}

// Resolve implements Resolver.
func (s *Sessions) Resolve(ctx context.Context) (*Dispatcher, error) {
	session, ok := SessionFromContext(ctx)
	if !ok || session.AccessToken == "" {
		return nil, ErrUnauthenticated
	}

	key := session.AccessToken + "\x00" + session.OrganizationSlug

	if cached, found := s.dispatchers.Get(key); found {
		// Touch the entry so active sessions are not evicted.
		s.dispatchers.SetDefault(key, cached)
		return cached.(*Dispatcher), nil
	}

	d := s.build(session)
	s.dispatchers.SetDefault(key, d)

	return d, nil
}

// mcpTool adapts a registry entry to core.Tool.
type mcpTool struct {
	def     *ToolDefinition
	handle  mcp.Tool
	resolve Resolver
}

func (tool *mcpTool) Name() string {
	return tool.def.Name
}

func (tool *mcpTool) Handle() mcp.Tool {
	return tool.handle
}

// Handler returns protocol errors for calls that cannot be dispatched
// (no session, rejected arguments) and a tool result for everything else.
func (tool *mcpTool) Handler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dispatcher, err := tool.resolve(ctx)
	if err != nil {
		return nil, err
	}

	result, err := dispatcher.Call(ctx, tool.def.Name, request.GetArguments())
	if err != nil {
		return nil, err
	}

	return result.CallToolResult(), nil
}

// Tools adapts every definition of the registry to core.Tool.
func Tools(registry *Registry, resolve Resolver) []core.Tool {
	defs := registry.Definitions()
	out := make([]core.Tool, 0, len(defs))

	for _, def := range defs {
		out = append(out, &mcpTool{
			def:     def,
			handle:  def.MCPTool(),
			resolve: resolve,
		})
	}

	return out
}

// Register adds every tool of the registry to s.
func Register(s *server.MCPServer, registry *Registry, resolve Resolver) {
	for _, tool := range Tools(registry, resolve) {
		s.AddTool(tool.Handle(), tool.Handler)
	}
}
