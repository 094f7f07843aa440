// Package tools implements the Sentry MCP tool catalog: the registry of
// tool contracts, the dispatcher that validates and runs calls against a
// session, and the handlers behind every tool.
package tools

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Standard errors for consistent error handling
var (
	ErrInvalidParams        = errors.New("invalid parameters")
	ErrUnknownTool          = errors.New("unknown tool")
	ErrUnauthenticated      = errors.New("no session is associated with this request")
	ErrOrganizationRequired = errors.New("Organization slug is required.")
	ErrIssueRequired        = errors.New("Either issueId or issueUrl must be provided")
)

// RejectedError is returned for calls refused before any handler runs. It
// surfaces to the client as a protocol-level error.
type RejectedError struct {
	Tool string
	Err  error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("tool %s rejected: %v", e.Tool, e.Err)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// UserInputError marks a handler failure the caller can fix by changing its
// arguments. It is rendered without an event ID.
type UserInputError struct {
	Err error
}

func (e *UserInputError) Error() string {
	return e.Err.Error()
}

func (e *UserInputError) Unwrap() error {
	return e.Err
}

func userInput(err error) error {
	return &UserInputError{Err: err}
}

// Result is the outcome of one tool call.
type Result struct {
	Text    string
	IsError bool
}

// CallToolResult converts the result to its wire shape.
func (r Result) CallToolResult() *mcp.CallToolResult {
	if r.IsError {
		return mcp.NewToolResultError(r.Text)
	}

	return mcp.NewToolResultText(r.Text)
}
