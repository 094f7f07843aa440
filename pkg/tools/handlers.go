package tools

import (
	"context"

	"github.com/theapemachine/mcp-server-sentry/pkg/format"
	"github.com/theapemachine/mcp-server-sentry/pkg/sentry"
	"golang.org/x/sync/errgroup"
)

// issueSorts maps the sortBy values exposed to callers onto the sort keys
// the issues endpoint understands.
var issueSorts = map[string]string{
	"last_seen":  sentry.IssueSortDate,
	"first_seen": sentry.IssueSortNew,
	"count":      sentry.IssueSortFrequency,
	"userCount":  sentry.IssueSortUsers,
}

func handleListOrganizations(ctx context.Context, call Call) (string, error) {
	orgs, err := call.Client.ListOrganizations(ctx)
	if err != nil {
		return "", err
	}

	return format.Organizations(orgs), nil
}

func handleListTeams(ctx context.Context, call Call) (string, error) {
	org, err := call.Organization()
	if err != nil {
		return "", err
	}

	teams, err := call.Client.ListTeams(ctx, org)
	if err != nil {
		return "", err
	}

	return format.Teams(org, teams), nil
}

func handleListProjects(ctx context.Context, call Call) (string, error) {
	org, err := call.Organization()
	if err != nil {
		return "", err
	}

	projects, err := call.Client.ListProjects(ctx, org)
	if err != nil {
		return "", err
	}

	return format.Projects(org, projects), nil
}

func handleListIssues(ctx context.Context, call Call) (string, error) {
	org, err := call.Organization()
	if err != nil {
		return "", err
	}

	projectSlug := call.String("projectSlug")

	issues, err := call.Client.ListIssues(ctx, sentry.ListIssuesOptions{
		OrganizationSlug: org,
		ProjectSlug:      projectSlug,
		Query:            call.String("query"),
		SortBy:           issueSorts[call.String("sortBy")],
	})
	if err != nil {
		return "", err
	}

	return format.Issues(call.Client, org, projectSlug, issues), nil
}

func handleGetIssueSummary(ctx context.Context, call Call) (string, error) {
	org, issueID, err := call.Issue()
	if err != nil {
		return "", err
	}

	issue, err := call.Client.GetIssue(ctx, org, issueID)
	if err != nil {
		return "", err
	}

	return format.IssueSummary(call.Client, org, issue), nil
}

func handleGetIssueDetails(ctx context.Context, call Call) (string, error) {
	org, issueID, err := call.Issue()
	if err != nil {
		return "", err
	}

	var (
		issue sentry.Issue
		event sentry.Event
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		issue, err = call.Client.GetIssue(gctx, org, issueID)
		return err
	})

	g.Go(func() (err error) {
		event, err = call.Client.GetLatestEventForIssue(gctx, org, issueID)
		return err
	})

	if err := g.Wait(); err != nil {
		return "", err
	}

	return format.IssueDetails(call.Client, org, issue, event), nil
}

func handleSearchErrors(ctx context.Context, call Call) (string, error) {
	org, err := call.Organization()
	if err != nil {
		return "", err
	}

	rows, err := call.Client.SearchErrors(ctx, sentry.SearchErrorsOptions{
		OrganizationSlug: org,
		ProjectSlug:      call.String("projectSlug"),
		Filename:         call.String("filename"),
		Transaction:      call.String("transaction"),
		Query:            call.String("query"),
		SortBy:           call.String("sortBy"),
	})
	if err != nil {
		return "", err
	}

	return format.ErrorSearch(call.Client, org, rows), nil
}

func handleSearchTransactions(ctx context.Context, call Call) (string, error) {
	org, err := call.Organization()
	if err != nil {
		return "", err
	}

	rows, err := call.Client.SearchSpans(ctx, sentry.SearchSpansOptions{
		OrganizationSlug: org,
		ProjectSlug:      call.String("projectSlug"),
		Transaction:      call.String("transaction"),
		Query:            call.String("query"),
		SortBy:           call.String("sortBy"),
	})
	if err != nil {
		return "", err
	}

	return format.SpanSearch(call.Client, org, rows), nil
}

func handleCreateTeam(ctx context.Context, call Call) (string, error) {
	org, err := call.Organization()
	if err != nil {
		return "", err
	}

	team, err := call.Client.CreateTeam(ctx, org, call.String("name"))
	if err != nil {
		return "", err
	}

	return format.CreatedTeam(team), nil
}

func handleCreateProject(ctx context.Context, call Call) (string, error) {
	org, err := call.Organization()
	if err != nil {
		return "", err
	}

	project, key, err := call.Client.CreateProject(ctx, sentry.CreateProjectOptions{
		OrganizationSlug: org,
		TeamSlug:         call.String("teamSlug"),
		Name:             call.String("name"),
		Platform:         call.String("platform"),
	})
	if err != nil {
		return "", err
	}

	return format.CreatedProject(project, key), nil
}

func handleHelp(_ context.Context, call Call) (string, error) {
	text, err := format.Help(call.String("subject"))
	if err != nil {
		return "", userInput(err)
	}

	return text, nil
}
