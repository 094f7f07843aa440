package sentry

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Sort orders accepted by SearchErrors.
const (
	ErrorSortLastSeen = "last_seen"
	ErrorSortCount    = "count"
)

// Sort orders accepted by SearchSpans.
const (
	SpanSortTimestamp = "timestamp"
	SpanSortDuration  = "duration"
)

// searchQuery assembles a Sentry search query from caller supplied
// fragments. Values interpolated inside quotes are escaped so that a quote
// in the input cannot terminate the quoted term early.
type searchQuery struct {
	terms []string
}

func newSearchQuery(terms ...string) *searchQuery {
	return &searchQuery{terms: terms}
}

// quoted appends key:"<prefix><value>" when value is not empty.
func (q *searchQuery) quoted(key, prefix, value string) *searchQuery {
	if value != "" {
		q.terms = append(q.terms, key+`:"`+prefix+escapeQuoted(value)+`"`)
	}

	return q
}

// raw appends a free-form query fragment unchanged.
func (q *searchQuery) raw(fragment string) *searchQuery {
	if fragment = strings.TrimSpace(fragment); fragment != "" {
		q.terms = append(q.terms, fragment)
	}

	return q
}

func (q *searchQuery) project(slug string) *searchQuery {
	if slug != "" {
		q.terms = append(q.terms, "project:"+slug)
	}

	return q
}

func (q *searchQuery) String() string {
	return strings.Join(q.terms, " ")
}

// escapeQuoted escapes backslashes and double quotes for use inside a quoted
// search term.
func escapeQuoted(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `"`, `\"`)
}

// SearchErrorsOptions are the inputs of SearchErrors.
type SearchErrorsOptions struct {
	OrganizationSlug string
	ProjectSlug      string
	Filename         string
	Transaction      string
	Query            string
	SortBy           string
}

// SearchErrors queries the errors dataset of an organization.
func (c *Client) SearchErrors(ctx context.Context, opts SearchErrorsOptions) ([]ErrorRow, error) {
	query := newSearchQuery().
		quoted("stack.filename", "*", opts.Filename).
		quoted("transaction", "", opts.Transaction).
		raw(opts.Query).
		project(opts.ProjectSlug)

	sort := "-last_seen"
	if opts.SortBy == ErrorSortCount {
		sort = "-count"
	}

	params := url.Values{}
	params.Set("dataset", "errors")
	params.Set("per_page", pageSize)
	params.Set("referrer", referrer)
	params.Set("sort", sort)
	params.Set("statsPeriod", statsPeriod)
	for _, field := range []string{"issue", "title", "project", "last_seen()", "count()"} {
		params.Add("field", field)
	}
	params.Set("query", query.String())

	body, err := c.request(ctx, http.MethodGet, "/organizations/"+url.PathEscape(opts.OrganizationSlug)+"/events/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	return decodeEvents[ErrorRow]("errors search", body)
}

// SearchSpansOptions are the inputs of SearchSpans.
type SearchSpansOptions struct {
	OrganizationSlug string
	ProjectSlug      string
	Transaction      string
	Query            string
	SortBy           string
}

// SearchSpans queries the spans dataset of an organization for transactions.
func (c *Client) SearchSpans(ctx context.Context, opts SearchSpansOptions) ([]SpanRow, error) {
	query := newSearchQuery("is_transaction:true").
		quoted("transaction", "", opts.Transaction).
		raw(opts.Query).
		project(opts.ProjectSlug)

	sort := "-timestamp"
	if opts.SortBy == SpanSortDuration {
		sort = "-span.duration"
	}

	params := url.Values{}
	params.Set("dataset", "spans")
	params.Set("per_page", pageSize)
	params.Set("referrer", referrer)
	params.Set("sort", sort)
	params.Set("allowAggregateConditions", "0")
	params.Set("useRpc", "1")
	for _, field := range []string{"id", "trace", "span.op", "span.description", "span.duration", "transaction", "project", "timestamp"} {
		params.Add("field", field)
	}
	params.Set("query", query.String())

	body, err := c.request(ctx, http.MethodGet, "/organizations/"+url.PathEscape(opts.OrganizationSlug)+"/events/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	return decodeEvents[SpanRow]("spans search", body)
}
