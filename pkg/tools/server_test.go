package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	. "github.com/smartystreets/goconvey/convey"
)

func callMessage(t *testing.T, name string, args map[string]any) json.RawMessage {
	t.Helper()

	return json.RawMessage(mustJSON(t, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	}))
}

func TestRegister(t *testing.T) {
	Convey("Given the catalog registered on an MCP server", t, func() {
		_, client := newFakeSentry(t, map[string]string{
			"/api/0/organizations/": `[{"id":"1","slug":"sentry","name":"Sentry"}]`,
		})

		registry := NewDefaultRegistry()
		d := newTestDispatcher(SessionContext{AccessToken: "token"}, client)

		s := server.NewMCPServer("test", "0.0.0")
		Register(s, registry, StaticResolver(d))

		Convey("A valid call should produce a text result", func() {
			resp := s.HandleMessage(context.Background(), callMessage(t, "list_organizations", nil))

			rpc, ok := resp.(mcp.JSONRPCResponse)
			So(ok, ShouldBeTrue)

			result, ok := rpc.Result.(mcp.CallToolResult)
			So(ok, ShouldBeTrue)
			So(result.IsError, ShouldBeFalse)
			So(result.Content[0].(mcp.TextContent).Text, ShouldEqual, "# Organizations\n\n- sentry\n")
		})

		Convey("A call missing a required parameter should be a protocol error", func() {
			resp := s.HandleMessage(context.Background(), callMessage(t, "create_team", map[string]any{}))

			rpc, ok := resp.(mcp.JSONRPCError)
			So(ok, ShouldBeTrue)
			So(rpc.Error.Message, ShouldContainSubstring, "missing required parameter: 'name'")
		})

		Convey("An unknown tool should be a protocol error", func() {
			resp := s.HandleMessage(context.Background(), callMessage(t, "drop_tables", nil))

			_, ok := resp.(mcp.JSONRPCError)
			So(ok, ShouldBeTrue)
		})
	})

	Convey("Given the adapted tools", t, func() {
		tools := Tools(NewDefaultRegistry(), StaticResolver(nil))

		Convey("Every catalog entry should be advertised with its contract", func() {
			So(tools, ShouldHaveLength, 11)

			for _, tool := range tools {
				So(tool.Handle().Name, ShouldEqual, tool.Name())
				So(tool.Handle().Description, ShouldNotBeEmpty)

				if tool.Name() == "create_project" {
					So(tool.Handle().InputSchema.Required, ShouldResemble, []string{"teamSlug", "name"})
				}

				if tool.Name() == "search_errors" {
					sortBy := tool.Handle().InputSchema.Properties["sortBy"].(map[string]any)
					So(sortBy["enum"], ShouldResemble, []string{"last_seen", "count"})
					So(sortBy["default"], ShouldEqual, "last_seen")
				}
			}
		})
	})
}

func TestSessions(t *testing.T) {
	Convey("Given a session cache", t, func() {
		var built int

		sessions := NewSessions(time.Hour, func(session SessionContext) *Dispatcher {
			built++
			return NewDispatcher(NewDefaultRegistry(), session, nil, WithLogger(quietLogger))
		})

		Convey("A request without a session should be refused", func() {
			_, err := sessions.Resolve(context.Background())
			So(errors.Is(err, ErrUnauthenticated), ShouldBeTrue)
		})

		Convey("Requests of the same session should share a dispatcher", func() {
			ctx := WithSession(context.Background(), SessionContext{AccessToken: "a", OrganizationSlug: "sentry"})

			first, err := sessions.Resolve(ctx)
			So(err, ShouldBeNil)
			second, err := sessions.Resolve(ctx)
			So(err, ShouldBeNil)

			So(first, ShouldEqual, second)
			So(built, ShouldEqual, 1)
			So(first.Session().OrganizationSlug, ShouldEqual, "sentry")
		})

		Convey("Different sessions should get their own dispatcher", func() {
			a, _ := sessions.Resolve(WithSession(context.Background(), SessionContext{AccessToken: "a"}))
			b, _ := sessions.Resolve(WithSession(context.Background(), SessionContext{AccessToken: "b"}))

			So(a, ShouldNotEqual, b)
			So(built, ShouldEqual, 2)
		})
	})
}
