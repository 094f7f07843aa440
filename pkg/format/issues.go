package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/theapemachine/mcp-server-sentry/pkg/sentry"
)

// Issues renders the result of an issue listing.
func Issues(links Linker, organizationSlug, projectSlug string, issues []sentry.Issue) string {
	var b strings.Builder

	scope := organizationSlug
	if projectSlug != "" {
		scope += "/" + projectSlug
	}

	fmt.Fprintf(&b, "# Issues in **%s**\n\n", scope)

	if len(issues) == 0 {
		b.WriteString("No issues found.\n")
		return b.String()
	}

	for _, issue := range issues {
		fmt.Fprintf(&b, "## %s\n\n", issue.ShortID)
		fmt.Fprintf(&b, "**Description**: %s\n", issue.Title)
		fmt.Fprintf(&b, "**Culprit**: %s\n", issue.Culprit)
		fmt.Fprintf(&b, "**First Seen**: %s\n", issue.FirstSeen)
		fmt.Fprintf(&b, "**Last Seen**: %s\n", issue.LastSeen)
		fmt.Fprintf(&b, "**URL**: %s\n\n", links.IssueURL(organizationSlug, issue.ShortID))
	}

	b.WriteString("# Using this information\n\n")
	b.WriteString("- You can reference the Issue ID in commit messages (e.g. `Fixes <issueID>`) to automatically close the issue when the commit is merged.\n")
	fmt.Fprintf(&b, "- You can get more details about a specific issue by using the tool: `get_issue_details(organizationSlug=\"%s\", issueId=<issueID>)`\n", organizationSlug)

	return b.String()
}

// IssueSummary renders the metadata of a single issue.
func IssueSummary(links Linker, organizationSlug string, issue sentry.Issue) string {
	var b strings.Builder

	writeIssueHeader(&b, links, organizationSlug, issue)

	return b.String()
}

// IssueDetails renders an issue together with its latest event.
func IssueDetails(links Linker, organizationSlug string, issue sentry.Issue, event sentry.Event) string {
	var b strings.Builder

	writeIssueHeader(&b, links, organizationSlug, issue)

	b.WriteString("\n## Event Details\n\n")
	fmt.Fprintf(&b, "**Event ID**: %s\n", event.ID)
	fmt.Fprintf(&b, "**Occurred At**: %s\n", event.DateCreated)
	if event.Message != "" {
		fmt.Fprintf(&b, "**Message**:\n%s\n", event.Message)
	}
	b.WriteString("\n")

	b.WriteString(Event(event))

	b.WriteString("# Using this information\n\n")
	fmt.Fprintf(&b, "- You can reference the IssueID in commit messages (e.g. `Fixes %s`) to automatically close the issue when the commit is merged.\n", issue.ShortID)
	b.WriteString("- The stacktrace includes both first-party application code as well as third-party code, its important to triage to first-party code.\n")

	return b.String()
}

func writeIssueHeader(b *strings.Builder, links Linker, organizationSlug string, issue sentry.Issue) {
	fmt.Fprintf(b, "# Issue %s in **%s**\n\n", issue.ShortID, organizationSlug)
	fmt.Fprintf(b, "**Description**: %s\n", issue.Title)
	fmt.Fprintf(b, "**Culprit**: %s\n", issue.Culprit)
	fmt.Fprintf(b, "**First Seen**: %s\n", issue.FirstSeen)
	fmt.Fprintf(b, "**Last Seen**: %s\n", issue.LastSeen)
	fmt.Fprintf(b, "**Occurrences**: %s\n", orUnknown(string(issue.Count)))
	fmt.Fprintf(b, "**Users Impacted**: %s\n", orUnknown(string(issue.UserCount)))
	fmt.Fprintf(b, "**Status**: %s\n", orUnknown(issue.Status))
	fmt.Fprintf(b, "**Platform**: %s\n", orUnknown(issue.Platform))
	fmt.Fprintf(b, "**Project**: %s\n", orUnknown(issue.Project.Name))
	fmt.Fprintf(b, "**URL**: %s\n", links.IssueURL(organizationSlug, issue.ShortID))
}

// Event renders the first exception of every exception entry of an event,
// followed by its stack trace when one was captured.
func Event(event sentry.Event) string {
	var b strings.Builder

	for _, entry := range event.Entries {
		if entry.Type != sentry.EntryTypeException || entry.Exception == nil {
			continue
		}

		exception, ok := entry.Exception.First()
		if !ok {
			continue
		}

		fmt.Fprintf(&b, "**Error:**\n```\n%s: %s\n```\n\n", exception.Type, exception.Value)

		if exception.Stacktrace == nil || len(exception.Stacktrace.Frames) == 0 {
			continue
		}

		frames := make([]string, 0, len(exception.Stacktrace.Frames))
		for _, frame := range exception.Stacktrace.Frames {
			frames = append(frames, FrameHeader(frame, event.Platform)+frameContext(frame))
		}

		fmt.Fprintf(&b, "**Stacktrace:**\n```\n%s\n```\n\n", strings.Join(frames, "\n"))
	}

	return b.String()
}

// FrameHeader renders the location of a frame. JavaScript platforms use the
// file:line:col (function) shape their developers expect.
func FrameHeader(frame sentry.Frame, platform string) string {
	if strings.HasPrefix(platform, "javascript") {
		parts := make([]string, 0, 3)
		if frame.Filename != "" {
			parts = append(parts, frame.Filename)
		}
		if frame.LineNo != nil && *frame.LineNo != 0 {
			parts = append(parts, strconv.Itoa(*frame.LineNo))
		}
		if frame.ColNo != nil && *frame.ColNo != 0 {
			parts = append(parts, strconv.Itoa(*frame.ColNo))
		}

		header := strings.Join(parts, ":")
		if frame.Function != "" {
			header += " (" + frame.Function + ")"
		}

		return header
	}

	function := "unknown function"
	if frame.Function != "" {
		function = `"` + frame.Function + `"`
	}

	location := frame.Filename
	if location == "" {
		location = frame.Module
	}

	header := function + ` in "` + location + `"`
	if frame.LineNo != nil && *frame.LineNo != 0 {
		header += " at line " + strconv.Itoa(*frame.LineNo)
		if frame.ColNo != nil {
			header += ":" + strconv.Itoa(*frame.ColNo)
		}
	}

	return header
}

// frameContext keeps only the context line of the frame's own line number.
func frameContext(frame sentry.Frame) string {
	if frame.LineNo == nil {
		return ""
	}

	var b strings.Builder
	for _, line := range frame.Context {
		if line.LineNo == *frame.LineNo {
			b.WriteString("\n" + line.Code)
		}
	}

	return b.String()
}
