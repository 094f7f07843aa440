package tools

import (
	"strings"

	"github.com/theapemachine/mcp-server-sentry/pkg/format"
)

var (
	paramOrganizationSlug = Param{
		Name:        "organizationSlug",
		Type:        ParamString,
		Description: "The organization's slug. This will default to the first org you have access to.",
	}

	paramProjectSlug = Param{
		Name:        "projectSlug",
		Type:        ParamString,
		Description: "The project's slug. This will default to all projects you have access to. It is encouraged to specify this when possible.",
	}

	paramIssueID = Param{
		Name:        "issueId",
		Type:        ParamString,
		Description: "The Issue ID. e.g. `PROJECT-1Z43`",
	}

	paramIssueURL = Param{
		Name:        "issueUrl",
		Type:        ParamString,
		Description: "The URL of the issue to retrieve details for.",
	}

	paramQuery = Param{
		Name:        "query",
		Type:        ParamString,
		Description: "The search query to apply. Use the `help(subject=\"query_syntax\")` tool to get more information about the query syntax rather than guessing.",
	}

	paramTransaction = Param{
		Name:        "transaction",
		Type:        ParamString,
		Description: "The transaction name. Also known as the endpoint, or route name.",
	}
)

const orgHint = "If only one parameter is provided, and it could be either `organizationSlug` or `projectSlug`, its probably `organizationSlug`, but if you're really uncertain you should call `list_organizations()` first."

func lines(l ...string) string {
	return strings.Join(l, "\n")
}

// Catalog returns the definitions of every tool the server exposes.
func Catalog() []ToolDefinition {
	return []ToolDefinition{
		{
			Name: "list_organizations",
			Description: lines(
				"List all organizations that the user has access to in Sentry.",
				"",
				"Use this tool when you need to:",
				"- View all organizations in Sentry",
			),
			ReadOnly: true,
			Handler:  handleListOrganizations,
		},
		{
			Name: "list_teams",
			Description: lines(
				"List all teams in an organization in Sentry.",
				"",
				"Use this tool when you need to:",
				"- View all teams in a Sentry organization",
			),
			Params:   []Param{paramOrganizationSlug},
			ReadOnly: true,
			Handler:  handleListTeams,
		},
		{
			Name: "list_projects",
			Description: lines(
				"Retrieve a list of projects in Sentry.",
				"",
				"Use this tool when you need to:",
				"- View all projects in a Sentry organization",
			),
			Params:   []Param{paramOrganizationSlug},
			ReadOnly: true,
			Handler:  handleListProjects,
		},
		{
			Name: "list_issues",
			Description: lines(
				"List all issues in Sentry.",
				"",
				"Use this tool when you need to:",
				"- View all issues in a Sentry organization",
				"",
				"If you're looking for more granular data beyond a summary of identified problems, you should use the `search_errors()` or `search_transactions()` tools instead.",
				"<examples>",
				"### Find the newest unresolved issues in the 'my-project' project",
				"",
				"```",
				"list_issues(organizationSlug='my-organization', projectSlug='my-project', query='is:unresolved', sortBy='last_seen')",
				"```",
				"",
				"### Find the most frequently occurring crashes in the 'my-project' project",
				"",
				"```",
				"list_issues(organizationSlug='my-organization', projectSlug='my-project', query='is:unresolved error.handled:false', sortBy='count')",
				"```",
				"</examples>",
				"",
				"<query_syntax>",
				"Use the tool `help('query_syntax')` to get more information about the query syntax.",
				"",
				"- `is:unresolved` - Find unresolved issues",
				"- `release:latest` - Find issues in the latest release only",
				"- `user.email:foo@example.com` - Find issues affecting a specific user",
				"- `transaction:/checkout` - Find errors affecting a specific route",
				"",
				"In most cases when a user asks for a list of issues, they are asking for a list of _unresolved_ issues.",
				"</query_syntax>",
				"",
				"<hints>",
				orgHint,
				"</hints>",
			),
			Params: []Param{
				paramOrganizationSlug,
				paramProjectSlug,
				paramQuery,
				{
					Name:        "sortBy",
					Type:        ParamString,
					Description: "Sort the results either by the last time they occurred, the first time they occurred, the count of occurrences, or the number of users affected.",
					Enum:        []string{"last_seen", "first_seen", "count", "userCount"},
				},
			},
			ReadOnly: true,
			Handler:  handleListIssues,
		},
		{
			Name: "get_issue_summary",
			Description: lines(
				"Retrieve a summary of an issue in Sentry.",
				"",
				"Use this tool when you need to:",
				"- View a summary of an issue in Sentry",
				"",
				"If the issue is an error, or you want additional information like the stacktrace, you should use `get_issue_details()` tool instead.",
			),
			Params:   []Param{paramOrganizationSlug, paramIssueID, paramIssueURL},
			ReadOnly: true,
			Handler:  handleGetIssueSummary,
		},
		{
			Name: "get_issue_details",
			Description: lines(
				"Retrieve issue details from Sentry for a specific Issue ID, including the stacktrace and error message if available. Either issueId or issueUrl MUST be provided.",
				"",
				"Use this tool when you need to:",
				"- Investigate a specific production error",
				"- Access detailed error information and stacktraces from Sentry",
			),
			Params:   []Param{paramOrganizationSlug, paramIssueID, paramIssueURL},
			ReadOnly: true,
			Handler:  handleGetIssueDetails,
		},
		{
			Name: "search_errors",
			Description: lines(
				"Query Sentry for errors using advanced search syntax.",
				"",
				"Use this tool when you need to:",
				"- Search for production errors in a specific file.",
				"- Analyze error patterns and frequencies.",
				"- Find recent or frequently occurring errors.",
				"",
				"<examples>",
				"### Find common errors within a file",
				"",
				"The `filename` parameter is a suffix based search, so only use the filename or the direct parent folder of the file. Generic filenames like `index.js` match errors from unrelated projects.",
				"",
				"```",
				"search_errors(organizationSlug='my-organization', filename='index.js', sortBy='count')",
				"```",
				"",
				"### Find recent crashes from the 'peated' project",
				"",
				"```",
				"search_errors(organizationSlug='my-organization', query='is:unresolved error.handled:false', projectSlug='peated', sortBy='last_seen')",
				"```",
				"</examples>",
				"",
				"<query_syntax>",
				"Use the tool `help('query_syntax')` to get more information about the query syntax.",
				"",
				"- `error.handled:false` - Find errors that are not handled (otherwise known as uncaught exceptions or crashes)",
				"- `release:latest` - Find errors in the latest release only",
				"- `transaction:/checkout` - Find errors affecting a specific route",
				"</query_syntax>",
				"",
				"<hints>",
				orgHint,
				"",
				"If you are looking for issues, in a way that you might be looking for something like 'unresolved errors', you should use the `list_issues()` tool",
				"</hints>",
			),
			Params: []Param{
				paramOrganizationSlug,
				paramProjectSlug,
				{
					Name:        "filename",
					Type:        ParamString,
					Description: "The filename to search for errors in.",
				},
				paramTransaction,
				paramQuery,
				{
					Name:        "sortBy",
					Type:        ParamString,
					Description: "Sort the results either by the last time they occurred or the count of occurrences.",
					Enum:        []string{"last_seen", "count"},
					Default:     "last_seen",
				},
			},
			ReadOnly: true,
			Handler:  handleSearchErrors,
		},
		{
			Name: "search_transactions",
			Description: lines(
				"Query Sentry for transactions using advanced search syntax.",
				"",
				"Transactions are segments of traces that are associated with a specific route or endpoint.",
				"",
				"Use this tool when you need to:",
				"- Search for production transaction data to understand performance.",
				"- Analyze traces and latency patterns.",
				"- Find examples of recent requests to endpoints.",
				"",
				"<examples>",
				"### Find slow requests to a route",
				"",
				"```",
				"search_transactions(organizationSlug='my-organization', transaction='/checkout', sortBy='duration')",
				"```",
				"</examples>",
				"",
				"<hints>",
				orgHint,
				"</hints>",
			),
			Params: []Param{
				paramOrganizationSlug,
				paramProjectSlug,
				paramTransaction,
				paramQuery,
				{
					Name:        "sortBy",
					Type:        ParamString,
					Description: "Sort the results either by the timestamp of the request (most recent first) or the duration of the request (longest first).",
					Enum:        []string{"timestamp", "duration"},
					Default:     "timestamp",
				},
			},
			ReadOnly: true,
			Handler:  handleSearchTransactions,
		},
		{
			Name: "create_team",
			Description: lines(
				"Create a new team in Sentry.",
				"",
				"Use this tool when you need to:",
				"- Create a new team in a Sentry organization",
				"",
				"<hints>",
				"- If any parameter is ambiguous, you should clarify with the user what they meant.",
				"</hints>",
			),
			Params: []Param{
				paramOrganizationSlug,
				{
					Name:        "name",
					Type:        ParamString,
					Required:    true,
					Description: "The name of the team to create.",
				},
			},
			Handler: handleCreateTeam,
		},
		{
			Name: "create_project",
			Description: lines(
				"Create a new project in Sentry, giving you access to a new SENTRY_DSN.",
				"",
				"Use this tool when you need to:",
				"- Create a new project in a Sentry organization",
				"",
				"<hints>",
				"- If any parameter is ambiguous, you should clarify with the user what they meant.",
				"</hints>",
			),
			Params: []Param{
				paramOrganizationSlug,
				{
					Name:        "teamSlug",
					Type:        ParamString,
					Required:    true,
					Description: "The team's slug. This will default to the first team you have access to.",
				},
				{
					Name:        "name",
					Type:        ParamString,
					Required:    true,
					Description: "The name of the project to create. Typically this is commonly the name of the repository or service. It is only used as a visual label in Sentry.",
				},
				{
					Name:        "platform",
					Type:        ParamString,
					Description: "The platform for the project (e.g., python, javascript, react, etc.)",
				},
			},
			Handler: handleCreateProject,
		},
		{
			Name: "help",
			Description: lines(
				"Get information to help you better work with Sentry.",
				"",
				"Use this tool when you need to:",
				"- Understand the Sentry search syntax",
				"",
				"<examples>",
				"### Get help with the Sentry search syntax",
				"",
				"```",
				"help('query_syntax')",
				"```",
				"</examples>",
			),
			Params: []Param{
				{
					Name:        "subject",
					Type:        ParamString,
					Required:    true,
					Description: "The subject to get help with.",
					Enum:        []string{format.HelpQuerySyntax},
				},
			},
			ReadOnly: true,
			Handler:  handleHelp,
		},
	}
}

// NewDefaultRegistry returns a registry holding the full catalog.
func NewDefaultRegistry() *Registry {
	registry, err := NewRegistry(Catalog()...)
	if err != nil {
		panic(err)
	}

	return registry
}
