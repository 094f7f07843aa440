package format

import "fmt"

// HelpQuerySyntax is the subject name of the search syntax help page.
const HelpQuerySyntax = "query_syntax"

const querySyntaxHelp = `# Sentry Search Syntax

Search queries are made of ` + "`key:value`" + ` tokens separated by spaces. Free text
without a key is matched against the message or title.

## Operators

- ` + "`key:value`" + ` - exact match
- ` + "`!key:value`" + ` - negation
- ` + "`key:*value`" + ` / ` + "`key:value*`" + ` - suffix and prefix wildcards
- ` + "`key:[a, b]`" + ` - match any of a list
- ` + "`key:>10`" + `, ` + "`key:<=10`" + ` - numeric and duration comparisons
- ` + "`key:\"value with spaces\"`" + ` - quote values containing spaces

## Common keys

- ` + "`is:unresolved`" + `, ` + "`is:resolved`" + `, ` + "`is:ignored`" + ` - issue status
- ` + "`is:assigned`" + `, ` + "`assigned:me`" + ` - assignment
- ` + "`error.handled:false`" + ` - uncaught exceptions and crashes
- ` + "`error.type:TypeError`" + ` - exception type
- ` + "`release:latest`" + `, ` + "`release:[1.0, 2.0]`" + ` - releases
- ` + "`environment:production`" + ` - environment
- ` + "`user.email:jane@example.com`" + ` - affected user
- ` + "`transaction:/checkout`" + ` - route or endpoint
- ` + "`stack.filename:*index.js`" + ` - file appearing in the stack trace
- ` + "`span.op:http.client`" + `, ` + "`span.duration:>1s`" + ` - span filters for transaction searches
- ` + "`firstSeen:-24h`" + `, ` + "`lastSeen:-7d`" + ` - relative time ranges

## Examples

` + "```" + `
is:unresolved error.handled:false release:latest
` + "```" + `

` + "```" + `
transaction:/api/0/organizations/ span.duration:>500ms
` + "```" + `
`

// Help returns the help page for subject.
func Help(subject string) (string, error) {
	switch subject {
	case HelpQuerySyntax:
		return querySyntaxHelp, nil
	}

	return "", fmt.Errorf("unknown help subject %q", subject)
}
