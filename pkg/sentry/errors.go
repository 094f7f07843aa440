package sentry

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingArgument is returned when a required input such as an issue URL is empty.
	ErrMissingArgument = errors.New("missing argument")
	// ErrInvalidIssueURL is returned when an issue URL cannot be resolved to an organization and issue.
	ErrInvalidIssueURL = errors.New("invalid Sentry issue URL")
)

// APIError is returned for every non-2xx response from the Sentry API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed: %d %s\n%s", e.StatusCode, e.Status, e.Body)
}

// SchemaError is returned when a 2xx response does not match the shape an
// endpoint is expected to return. It signals integration drift rather than
// a caller mistake.
type SchemaError struct {
	Endpoint string
	Err      error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected response from %s: %v", e.Endpoint, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsAPIError reports whether err is, or wraps, an APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	return nil, false
}
