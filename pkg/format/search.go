package format

import (
	"fmt"
	"strings"

	"github.com/theapemachine/mcp-server-sentry/pkg/sentry"
)

// ErrorSearch renders the rows of an errors search. An empty result is a
// success and says where the search ran.
func ErrorSearch(links Linker, organizationSlug string, rows []sentry.ErrorRow) string {
	if len(rows) == 0 {
		return fmt.Sprintf("# No errors found\n\nCould not find any errors matching the search.\n\nWe searched within the %s organization.", organizationSlug)
	}

	var b strings.Builder

	b.WriteString("# Search Results\n\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "## %s: %s\n\n", row.Issue, row.Title)
		fmt.Fprintf(&b, "- **Issue ID**: %s\n", row.Issue)
		fmt.Fprintf(&b, "- **URL**: %s\n", links.IssueURL(organizationSlug, row.Issue))
		fmt.Fprintf(&b, "- **Project**: %s\n", row.Project)
		fmt.Fprintf(&b, "- **Last Seen**: %s\n", row.LastSeen)
		fmt.Fprintf(&b, "- **Occurrences**: %s\n\n", number(row.Count))
	}

	b.WriteString("# Using this information\n\n")
	fmt.Fprintf(&b, "- You can reference the Issue ID in commit messages (e.g. `Fixes %s`) to automatically close the issue when the commit is merged.\n", rows[0].Issue)
	b.WriteString("- You can get more details about an error by using the tool: `get_issue_details(issueId=<issueID>)`\n")

	return b.String()
}

// SpanSearch renders the rows of a transactions search, linking each row to
// its trace.
func SpanSearch(links Linker, organizationSlug string, rows []sentry.SpanRow) string {
	if len(rows) == 0 {
		return fmt.Sprintf("# No results found\n\nCould not find any transactions matching the search.\n\nWe searched within the %s organization.", organizationSlug)
	}

	var b strings.Builder

	b.WriteString("# Search Results\n\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "## `%s`\n\n", row.Transaction)
		fmt.Fprintf(&b, "**Span ID**: %s\n", row.ID)
		fmt.Fprintf(&b, "**Trace ID**: %s\n", row.Trace)
		fmt.Fprintf(&b, "**Span Operation**: %s\n", row.Op)
		fmt.Fprintf(&b, "**Span Description**: %s\n", row.Description)
		fmt.Fprintf(&b, "**Duration**: %sms\n", number(row.Duration))
		fmt.Fprintf(&b, "**Timestamp**: %s\n", row.Timestamp)
		fmt.Fprintf(&b, "**Project**: %s\n", row.Project)
		fmt.Fprintf(&b, "**URL**: %s\n\n", links.TraceURL(organizationSlug, row.Trace))
	}

	return b.String()
}
