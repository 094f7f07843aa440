// Package format renders Sentry API projections as the Markdown reports
// returned by the MCP tools. Every function is pure.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/theapemachine/mcp-server-sentry/pkg/sentry"
)

// Linker builds web links for issues and traces. *sentry.Client satisfies it.
type Linker interface {
	IssueURL(organizationSlug, issueID string) string
	TraceURL(organizationSlug, traceID string) string
}

// Organizations renders one "- {slug}" line per organization, in order.
func Organizations(orgs []sentry.Organization) string {
	var b strings.Builder

	b.WriteString("# Organizations\n\n")
	for _, org := range orgs {
		fmt.Fprintf(&b, "- %s\n", org.Slug)
	}

	return b.String()
}

// Teams renders the teams of an organization.
func Teams(organizationSlug string, teams []sentry.Team) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Teams in **%s**\n\n", organizationSlug)
	for _, team := range teams {
		fmt.Fprintf(&b, "- %s\n", team.Slug)
	}

	return b.String()
}

// Projects renders the projects of an organization.
func Projects(organizationSlug string, projects []sentry.Project) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Projects in **%s**\n\n", organizationSlug)
	for _, project := range projects {
		fmt.Fprintf(&b, "- %s\n", project.Slug)
	}

	return b.String()
}

// CreatedTeam renders a newly created team.
func CreatedTeam(team sentry.Team) string {
	var b strings.Builder

	b.WriteString("# New Team\n\n")
	fmt.Fprintf(&b, "- **ID**: %s\n", team.ID)
	fmt.Fprintf(&b, "- **Slug**: %s\n", team.Slug)
	fmt.Fprintf(&b, "- **Name**: %s\n", team.Name)
	b.WriteString("# Using this information\n\n")
	b.WriteString("- You should always inform the user of the Team Slug value.\n")

	return b.String()
}

// CreatedProject renders a newly created project. A nil key is a legitimate
// outcome: the project exists but its DSN could not be provisioned.
func CreatedProject(project sentry.Project, key *sentry.ClientKey) string {
	var b strings.Builder

	b.WriteString("# New Project\n\n")
	fmt.Fprintf(&b, "- **ID**: %s\n", project.ID)
	fmt.Fprintf(&b, "- **Slug**: %s\n", project.Slug)
	fmt.Fprintf(&b, "- **Name**: %s\n", project.Name)

	if key != nil {
		fmt.Fprintf(&b, "- **SENTRY_DSN**: %s\n\n", key.DSN.Public)
	} else {
		b.WriteString("- **SENTRY_DSN**: There was an error fetching this value.\n\n")
	}

	b.WriteString("# Using this information\n\n")
	b.WriteString("- You can reference the **SENTRY_DSN** value to initialize Sentry's SDKs.\n")
	b.WriteString("- You should always inform the user of the **SENTRY_DSN** and Project Slug values.\n")

	return b.String()
}

// Error renders a failed tool call. detail is omitted when empty.
func Error(eventID, detail string) string {
	var b strings.Builder

	b.WriteString("**Error**\n\n")
	b.WriteString("It looks like there was a problem communicating with the Sentry API.\n\n")
	b.WriteString("Please give the following information to the Sentry team:\n\n")
	fmt.Fprintf(&b, "**Event ID**: %s\n\n", eventID)
	b.WriteString(detail)

	return b.String()
}

// InputError renders a failure the caller can fix by changing its input.
func InputError(message string) string {
	return "**Input Error**\n\n" + message
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}

	return value
}
