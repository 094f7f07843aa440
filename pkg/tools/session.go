package tools

import (
	"context"
	"strings"

	"github.com/theapemachine/mcp-server-sentry/pkg/format"
	"github.com/theapemachine/mcp-server-sentry/pkg/sentry"
	"github.com/theapemachine/mcp-server-sentry/pkg/tools/utils"
)

// SessionContext is the immutable state of one authenticated session.
type SessionContext struct {
	AccessToken string
	// OrganizationSlug is the default organization; empty when none is set.
	OrganizationSlug string
}

// ResolveOrganization picks the explicit slug when given, otherwise the
// session default. It fails rather than operate on an undefined organization.
func (s SessionContext) ResolveOrganization(explicit string) (string, error) {
	if org := strings.TrimSpace(explicit); org != "" {
		return org, nil
	}

	if s.OrganizationSlug != "" {
		return s.OrganizationSlug, nil
	}

	return "", ErrOrganizationRequired
}

type sessionKey struct{}

// WithSession attaches a session to ctx.
func WithSession(ctx context.Context, session SessionContext) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session attached by WithSession.
func SessionFromContext(ctx context.Context) (SessionContext, bool) {
	session, ok := ctx.Value(sessionKey{}).(SessionContext)
	return session, ok
}

// Upstream is the part of the Sentry API the handlers call.
// *sentry.Client satisfies it.
type Upstream interface {
	format.Linker

	ListOrganizations(ctx context.Context) ([]sentry.Organization, error)
	ListTeams(ctx context.Context, organizationSlug string) ([]sentry.Team, error)
	CreateTeam(ctx context.Context, organizationSlug, name string) (sentry.Team, error)
	ListProjects(ctx context.Context, organizationSlug string) ([]sentry.Project, error)
	CreateProject(ctx context.Context, opts sentry.CreateProjectOptions) (sentry.Project, *sentry.ClientKey, error)
	ListIssues(ctx context.Context, opts sentry.ListIssuesOptions) ([]sentry.Issue, error)
	GetIssue(ctx context.Context, organizationSlug, issueID string) (sentry.Issue, error)
	GetLatestEventForIssue(ctx context.Context, organizationSlug, issueID string) (sentry.Event, error)
	SearchErrors(ctx context.Context, opts sentry.SearchErrorsOptions) ([]sentry.ErrorRow, error)
	SearchSpans(ctx context.Context, opts sentry.SearchSpansOptions) ([]sentry.SpanRow, error)
}

// Call is what a handler receives: the session, an API client bound to its
// credential, and validated arguments.
type Call struct {
	Session SessionContext
	Client  Upstream
	Args    map[string]any
}

// String returns a validated string argument, "" when absent.
func (c Call) String(key string) string {
	return utils.String(c.Args, key)
}

// Organization resolves the organization of the call.
func (c Call) Organization() (string, error) {
	org, err := c.Session.ResolveOrganization(c.String("organizationSlug"))
	if err != nil {
		return "", userInput(err)
	}

	return org, nil
}

// Issue resolves the organization and issue of an issue-scoped call. An issue
// URL takes precedence and also supplies the organization.
func (c Call) Issue() (organizationSlug, issueID string, err error) {
	if issueURL := c.String("issueUrl"); issueURL != "" {
		ref, err := sentry.ExtractIssueID(issueURL)
		if err != nil {
			return "", "", userInput(err)
		}

		return ref.OrganizationSlug, ref.IssueID, nil
	}

	issueID = c.String("issueId")
	if issueID == "" {
		return "", "", userInput(ErrIssueRequired)
	}

	organizationSlug, err = c.Organization()
	if err != nil {
		return "", "", err
	}

	return organizationSlug, issueID, nil
}
