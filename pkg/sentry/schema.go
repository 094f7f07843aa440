package sentry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ID is an identifier the API sends as either a JSON string or a JSON number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	s, err := stringOrNumber(data)
	if err != nil {
		return err
	}

	*id = ID(s)
	return nil
}

// Count is a counter the API sends as either a JSON string or a JSON number.
type Count string

func (c *Count) UnmarshalJSON(data []byte) error {
	s, err := stringOrNumber(data)
	if err != nil {
		return err
	}

	*c = Count(s)
	return nil
}

func stringOrNumber(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return "", nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", string(data))
	}

	return n.String(), nil
}

// Organization is the slim projection returned by the organization list.
type Organization struct {
	ID   ID     `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (o Organization) validate() error {
	return requireFields(map[string]string{"id": string(o.ID), "slug": o.Slug})
}

// Team is the slim projection of a team.
type Team struct {
	ID   ID     `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (t Team) validate() error {
	return requireFields(map[string]string{"id": string(t.ID), "slug": t.Slug})
}

// Project is the slim projection of a project.
type Project struct {
	ID   ID     `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (p Project) validate() error {
	return requireFields(map[string]string{"id": string(p.ID), "slug": p.Slug})
}

// ClientKey is a project key, carrying the DSN SDKs are initialised with.
type ClientKey struct {
	ID  ID `json:"id"`
	DSN struct {
		Public string `json:"public"`
	} `json:"dsn"`
}

func (k ClientKey) validate() error {
	return requireFields(map[string]string{"id": string(k.ID), "dsn.public": k.DSN.Public})
}

// Issue is a group of similar events.
type Issue struct {
	ID        ID      `json:"id"`
	ShortID   string  `json:"shortId"`
	Title     string  `json:"title"`
	FirstSeen string  `json:"firstSeen"`
	LastSeen  string  `json:"lastSeen"`
	Count     Count   `json:"count"`
	UserCount Count   `json:"userCount"`
	Permalink string  `json:"permalink"`
	Project   Project `json:"project"`
	Platform  string  `json:"platform"`
	Status    string  `json:"status"`
	Culprit   string  `json:"culprit"`
	Type      string  `json:"type"`
}

func (i Issue) validate() error {
	return requireFields(map[string]string{
		"id":           string(i.ID),
		"shortId":      i.ShortID,
		"title":        i.Title,
		"project.slug": i.Project.Slug,
	})
}

// Frame is a single stack frame. Every field may be missing.
type Frame struct {
	Filename string        `json:"filename"`
	Function string        `json:"function"`
	LineNo   *int          `json:"lineNo"`
	ColNo    *int          `json:"colNo"`
	AbsPath  string        `json:"absPath"`
	Module   string        `json:"module"`
	Context  []ContextLine `json:"context"`
}

// ContextLine is one line of source surrounding a frame, sent as a
// [lineno, code] tuple.
type ContextLine struct {
	LineNo int
	Code   string
}

func (c *ContextLine) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}

	if len(tuple) != 2 {
		return fmt.Errorf("context line must have 2 elements, got %d", len(tuple))
	}

	if err := json.Unmarshal(tuple[0], &c.LineNo); err != nil {
		return fmt.Errorf("context line number: %w", err)
	}

	if err := json.Unmarshal(tuple[1], &c.Code); err != nil {
		return fmt.Errorf("context line code: %w", err)
	}

	return nil
}

// Stacktrace holds the frames of an exception, oldest call first.
type Stacktrace struct {
	Frames []Frame `json:"frames"`
}

// Mechanism describes how an exception was captured.
type Mechanism struct {
	Type    string `json:"type"`
	Handled *bool  `json:"handled"`
}

// Exception is a single captured exception. Every field may be missing.
type Exception struct {
	Type       string      `json:"type"`
	Value      string      `json:"value"`
	Mechanism  *Mechanism  `json:"mechanism"`
	Stacktrace *Stacktrace `json:"stacktrace"`
}

// ExceptionPayload is the data of an exception entry. The API sends either a
// single "value" object or a "values" array; the shape is resolved once while
// decoding into SingleException or MultipleExceptions.
type ExceptionPayload interface {
	// First returns the exception that should be reported, if any.
	First() (Exception, bool)
	isExceptionPayload()
}

// SingleException is an exception entry that carried a "value" object.
type SingleException struct {
	Exception Exception
}

func (s SingleException) First() (Exception, bool) { return s.Exception, true }
func (SingleException) isExceptionPayload()        {}

// MultipleExceptions is an exception entry that carried a "values" array.
// Entries of the array may be null.
type MultipleExceptions struct {
	Exceptions []*Exception
}

func (m MultipleExceptions) First() (Exception, bool) {
	if len(m.Exceptions) == 0 || m.Exceptions[0] == nil {
		return Exception{}, false
	}

	return *m.Exceptions[0], true
}

func (MultipleExceptions) isExceptionPayload() {}

func decodeExceptionPayload(data json.RawMessage) (ExceptionPayload, error) {
	var raw struct {
		Value  *Exception   `json:"value"`
		Values []*Exception `json:"values"`
	}

	if len(data) == 0 {
		return MultipleExceptions{}, nil
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("exception entry: %w", err)
	}

	if raw.Value != nil {
		return SingleException{Exception: *raw.Value}, nil
	}

	return MultipleExceptions{Exceptions: raw.Values}, nil
}

// EntryTypeException is the entry type carrying exception data.
const EntryTypeException = "exception"

// EventEntry is one interface entry of an event. Exception is set only for
// entries of type "exception"; other entry types keep their raw data.
type EventEntry struct {
	Type      string
	Exception ExceptionPayload
	Data      json.RawMessage
}

func (e *EventEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.Type = raw.Type
	e.Data = raw.Data

	if raw.Type == EntryTypeException {
		payload, err := decodeExceptionPayload(raw.Data)
		if err != nil {
			return err
		}
		e.Exception = payload
	}

	return nil
}

// Event is a single occurrence of an issue.
type Event struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Message     string       `json:"message"`
	DateCreated string       `json:"dateCreated"`
	Culprit     string       `json:"culprit"`
	Platform    string       `json:"platform"`
	Entries     []EventEntry `json:"entries"`
}

func (e Event) validate() error {
	return requireFields(map[string]string{"id": e.ID, "title": e.Title})
}

// ErrorRow is one row of an errors dataset search.
type ErrorRow struct {
	Issue    string  `json:"issue"`
	IssueID  ID      `json:"issue.id"`
	Project  string  `json:"project"`
	Title    string  `json:"title"`
	Count    float64 `json:"count()"`
	LastSeen string  `json:"last_seen()"`
}

func (r ErrorRow) validate() error {
	return requireFields(map[string]string{"issue": r.Issue, "title": r.Title})
}

// SpanRow is one row of a spans dataset search.
type SpanRow struct {
	ID          string  `json:"id"`
	Trace       string  `json:"trace"`
	Op          string  `json:"span.op"`
	Description string  `json:"span.description"`
	Duration    float64 `json:"span.duration"`
	Transaction string  `json:"transaction"`
	Project     string  `json:"project"`
	Timestamp   string  `json:"timestamp"`
}

func (r SpanRow) validate() error {
	return requireFields(map[string]string{"id": r.ID, "trace": r.Trace})
}

type eventsResponse[T any] struct {
	Data []T `json:"data"`
}

type validator interface {
	validate() error
}

func requireFields(fields map[string]string) error {
	var missing []string

	for name, value := range fields {
		if value == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	sort.Strings(missing)
	return fmt.Errorf("missing required fields: %v", missing)
}

// decodeOne parses body as a single T and validates it.
func decodeOne[T validator](endpoint string, body []byte) (T, error) {
	var out T

	if err := json.Unmarshal(body, &out); err != nil {
		return out, &SchemaError{Endpoint: endpoint, Err: err}
	}

	if err := out.validate(); err != nil {
		return out, &SchemaError{Endpoint: endpoint, Err: err}
	}

	return out, nil
}

// decodeList parses body as a JSON array of T and validates every element.
func decodeList[T validator](endpoint string, body []byte) ([]T, error) {
	var out []T

	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &SchemaError{Endpoint: endpoint, Err: err}
	}

	if out == nil {
		return nil, &SchemaError{Endpoint: endpoint, Err: errors.New("expected a list, got null")}
	}

	for i, item := range out {
		if err := item.validate(); err != nil {
			return nil, &SchemaError{Endpoint: endpoint, Err: fmt.Errorf("item %d: %w", i, err)}
		}
	}

	return out, nil
}

// decodeEvents parses an events endpoint envelope and validates every row.
func decodeEvents[T validator](endpoint string, body []byte) ([]T, error) {
	var envelope eventsResponse[T]

	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &SchemaError{Endpoint: endpoint, Err: err}
	}

	if envelope.Data == nil {
		return nil, &SchemaError{Endpoint: endpoint, Err: errors.New("missing data")}
	}

	for i, row := range envelope.Data {
		if err := row.validate(); err != nil {
			return nil, &SchemaError{Endpoint: endpoint, Err: fmt.Errorf("row %d: %w", i, err)}
		}
	}

	return envelope.Data, nil
}
