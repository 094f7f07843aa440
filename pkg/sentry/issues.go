package sentry

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const (
	referrer    = "sentry-mcp"
	pageSize    = "10"
	statsPeriod = "1w"
)

// Issue sort orders understood by the issues endpoint.
const (
	IssueSortUsers     = "user"
	IssueSortFrequency = "freq"
	IssueSortDate      = "date"
	IssueSortNew       = "new"
)

// ListIssuesOptions are the inputs of ListIssues.
type ListIssuesOptions struct {
	OrganizationSlug string
	ProjectSlug      string
	Query            string
	SortBy           string
}

// ListIssues returns the first page of issues matching the options.
func (c *Client) ListIssues(ctx context.Context, opts ListIssuesOptions) ([]Issue, error) {
	query := newSearchQuery().
		raw(opts.Query).
		project(opts.ProjectSlug)

	params := url.Values{}
	params.Set("per_page", pageSize)
	params.Set("referrer", referrer)
	if opts.SortBy != "" {
		params.Set("sort", opts.SortBy)
	}
	params.Set("statsPeriod", statsPeriod)
	params.Set("query", query.String())
	params.Add("collapse", "stats")
	params.Add("collapse", "unhandled")

	body, err := c.request(ctx, http.MethodGet, "/organizations/"+url.PathEscape(opts.OrganizationSlug)+"/issues/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	return decodeList[Issue]("issues", body)
}

// GetIssue returns one issue by numeric id or short id.
func (c *Client) GetIssue(ctx context.Context, organizationSlug, issueID string) (Issue, error) {
	body, err := c.request(ctx, http.MethodGet, "/organizations/"+url.PathEscape(organizationSlug)+"/issues/"+url.PathEscape(issueID)+"/", nil)
	if err != nil {
		return Issue{}, err
	}

	return decodeOne[Issue]("issue", body)
}

// GetLatestEventForIssue returns the most recent event of an issue.
func (c *Client) GetLatestEventForIssue(ctx context.Context, organizationSlug, issueID string) (Event, error) {
	body, err := c.request(ctx, http.MethodGet, "/organizations/"+url.PathEscape(organizationSlug)+"/issues/"+url.PathEscape(issueID)+"/events/latest/", nil)
	if err != nil {
		return Event{}, err
	}

	return decodeOne[Event]("latest event", body)
}

// IssueURL returns the web URL of an issue. No request is made.
func (c *Client) IssueURL(organizationSlug, issueID string) string {
	if c.host != DefaultHost {
		return "https://" + c.host + "/organizations/" + organizationSlug + "/issues/" + issueID
	}

	return "https://" + organizationSlug + "." + c.host + "/issues/" + issueID
}

// TraceURL returns the web URL of a trace. No request is made.
func (c *Client) TraceURL(organizationSlug, traceID string) string {
	if c.host != DefaultHost {
		return "https://" + c.host + "/organizations/" + organizationSlug + "/explore/traces/trace/" + traceID
	}

	return "https://" + organizationSlug + "." + c.host + "/explore/traces/trace/" + traceID
}

// IssueRef identifies an issue parsed from a URL.
type IssueRef struct {
	IssueID          string
	OrganizationSlug string
}

// ExtractIssueID resolves the organization and issue id from a Sentry issue
// URL. Supported shapes are https://{org}.sentry.io/issues/{id},
// https://{host}/organizations/{org}/issues/{id} and
// https://{host}/{org}/issues/{id}.
func ExtractIssueID(rawURL string) (IssueRef, error) {
	if strings.TrimSpace(rawURL) == "" {
		return IssueRef{}, missingArgument("issueUrl")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return IssueRef{}, invalidIssueURL("Must start with http:// or https://")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return IssueRef{}, invalidIssueURL("Could not parse the URL: " + err.Error())
	}

	parts := splitPath(parsed.Path)
	issuesAt := indexOf(parts, "issues")
	if len(parts) < 2 || issuesAt < 0 {
		return IssueRef{}, invalidIssueURL("Path must contain '/issues/{issue_id}'")
	}

	if issuesAt+1 >= len(parts) {
		return IssueRef{}, invalidIssueURL("Unable to determine issue ID from URL.")
	}

	ref := IssueRef{IssueID: parts[issuesAt+1]}

	if orgAt := indexOf(parts, "organizations"); orgAt >= 0 && orgAt+1 < len(parts) {
		ref.OrganizationSlug = parts[orgAt+1]
	} else if parts[0] != "issues" && parts[0] != "organizations" {
		ref.OrganizationSlug = parts[0]
	} else {
		hostParts := strings.Split(parsed.Hostname(), ".")
		if len(hostParts) > 2 && hostParts[0] != "www" {
			ref.OrganizationSlug = hostParts[0]
		}
	}

	if ref.OrganizationSlug == "" {
		return IssueRef{}, invalidIssueURL("Could not determine organization.")
	}

	return ref, nil
}

func splitPath(path string) []string {
	var parts []string

	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}

	return parts
}

func indexOf(parts []string, value string) int {
	for i, part := range parts {
		if part == value {
			return i
		}
	}

	return -1
}

func missingArgument(name string) error {
	return &argumentError{sentinel: ErrMissingArgument, msg: "missing argument: " + name}
}

func invalidIssueURL(detail string) error {
	return &argumentError{sentinel: ErrInvalidIssueURL, msg: "Invalid Sentry issue URL. " + detail}
}

// argumentError carries a readable message while still matching its
// sentinel with errors.Is.
type argumentError struct {
	sentinel error
	msg      string
}

func (e *argumentError) Error() string { return e.msg }
func (e *argumentError) Unwrap() error { return e.sentinel }
