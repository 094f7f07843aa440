package sentry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(token, DefaultHost, WithAPIPrefix(srv.URL+"/api/0"))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestListOrganizations(t *testing.T) {
	Convey("Given an API returning two organizations", t, func() {
		var authorization, path string

		client := newTestClient(t, "access-token", func(w http.ResponseWriter, r *http.Request) {
			authorization = r.Header.Get("Authorization")
			path = r.URL.Path
			writeJSON(w, http.StatusOK, `[{"id":"1","slug":"sentry","name":"Sentry"},{"id":2,"slug":"acme","name":"Acme"}]`)
		})

		orgs, err := client.ListOrganizations(context.Background())

		Convey("It should decode them in order", func() {
			So(err, ShouldBeNil)
			So(orgs, ShouldHaveLength, 2)
			So(orgs[0].Slug, ShouldEqual, "sentry")
			So(orgs[1].ID, ShouldEqual, ID("2"))
		})

		Convey("It should call the versioned endpoint with a bearer token", func() {
			So(path, ShouldEqual, "/api/0/organizations/")
			So(authorization, ShouldEqual, "Bearer access-token")
		})
	})

	Convey("Given a client without a credential", t, func() {
		var authorization string

		client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
			authorization = r.Header.Get("Authorization")
			writeJSON(w, http.StatusOK, `[]`)
		})

		orgs, err := client.ListOrganizations(context.Background())

		Convey("It should not send an Authorization header", func() {
			So(err, ShouldBeNil)
			So(orgs, ShouldBeEmpty)
			So(authorization, ShouldBeEmpty)
		})
	})
}

func TestRequestFailures(t *testing.T) {
	Convey("Given an API that rejects the request", t, func() {
		client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, `{"detail":"The requested resource does not exist"}`)
		})

		_, err := client.ListTeams(context.Background(), "missing-org")

		Convey("It should return an APIError carrying status and body", func() {
			apiErr, ok := IsAPIError(err)
			So(ok, ShouldBeTrue)
			So(apiErr.StatusCode, ShouldEqual, http.StatusNotFound)
			So(apiErr.Status, ShouldEqual, "Not Found")
			So(apiErr.Body, ShouldContainSubstring, "does not exist")
			So(err.Error(), ShouldStartWith, "API request failed: 404 Not Found")
		})
	})

	Convey("Given an API returning an unexpected shape", t, func() {
		client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `[{"id":"1","name":"No slug"}]`)
		})

		_, err := client.ListProjects(context.Background(), "sentry")

		Convey("It should return a SchemaError, not an APIError", func() {
			var schemaErr *SchemaError
			So(errors.As(err, &schemaErr), ShouldBeTrue)
			So(schemaErr.Endpoint, ShouldEqual, "projects")
			_, isAPI := IsAPIError(err)
			So(isAPI, ShouldBeFalse)
		})
	})

	Convey("Given an API returning malformed JSON", t, func() {
		client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"id":`)
		})

		_, err := client.GetIssue(context.Background(), "sentry", "PROJ-1")

		Convey("It should return a SchemaError", func() {
			var schemaErr *SchemaError
			So(errors.As(err, &schemaErr), ShouldBeTrue)
		})
	})
}

func TestCreateProject(t *testing.T) {
	projectJSON := `{"id":"4509109104082945","slug":"cloudflare-mcp","name":"cloudflare-mcp"}`

	Convey("Given key provisioning succeeds", t, func() {
		var projectBody map[string]string

		client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/0/teams/sentry/the-goats/projects/":
				_ = json.NewDecoder(r.Body).Decode(&projectBody)
				writeJSON(w, http.StatusCreated, projectJSON)
			case "/api/0/projects/sentry/cloudflare-mcp/keys/":
				writeJSON(w, http.StatusCreated, `{"id":"d20df0a1","dsn":{"public":"https://d20df0a1@o1.ingest.sentry.io/2"}}`)
			default:
				http.NotFound(w, r)
			}
		})

		project, key, err := client.CreateProject(context.Background(), CreateProjectOptions{
			OrganizationSlug: "sentry",
			TeamSlug:         "the-goats",
			Name:             "cloudflare-mcp",
			Platform:         "javascript",
		})

		Convey("It should return the project and its key", func() {
			So(err, ShouldBeNil)
			So(project.Slug, ShouldEqual, "cloudflare-mcp")
			So(key, ShouldNotBeNil)
			So(key.DSN.Public, ShouldEqual, "https://d20df0a1@o1.ingest.sentry.io/2")
			So(projectBody["platform"], ShouldEqual, "javascript")
		})
	})

	Convey("Given key provisioning fails", t, func() {
		client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/0/teams/sentry/the-goats/projects/" {
				writeJSON(w, http.StatusCreated, projectJSON)
				return
			}
			writeJSON(w, http.StatusInternalServerError, `{"detail":"boom"}`)
		})

		project, key, err := client.CreateProject(context.Background(), CreateProjectOptions{
			OrganizationSlug: "sentry",
			TeamSlug:         "the-goats",
			Name:             "cloudflare-mcp",
		})

		Convey("It should still return the created project with a nil key", func() {
			So(err, ShouldBeNil)
			So(project.ID, ShouldEqual, ID("4509109104082945"))
			So(key, ShouldBeNil)
		})
	})

	Convey("Given project creation itself fails", t, func() {
		client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusForbidden, `{"detail":"no access"}`)
		})

		_, key, err := client.CreateProject(context.Background(), CreateProjectOptions{
			OrganizationSlug: "sentry",
			TeamSlug:         "the-goats",
			Name:             "cloudflare-mcp",
		})

		Convey("It should return the error", func() {
			So(err, ShouldNotBeNil)
			So(key, ShouldBeNil)
		})
	})
}

func TestSearchQueries(t *testing.T) {
	t.Run("search errors escapes quoted fragments", func(t *testing.T) {
		var got map[string][]string

		client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
			got = r.URL.Query()
			assert.Equal(t, "/api/0/organizations/sentry/events/", r.URL.Path)
			writeJSON(w, http.StatusOK, `{"data":[{"issue":"PROJ-1","issue.id":"1","project":"web","title":"Boom","count()":3,"last_seen()":"2025-04-07T12:23:39+00:00"}],"meta":{"fields":{},"units":{}}}`)
		})

		rows, err := client.SearchErrors(context.Background(), SearchErrorsOptions{
			OrganizationSlug: "sentry",
			ProjectSlug:      "web",
			Filename:         `say "hi".js`,
			Transaction:      `/checkout"`,
			Query:            "is:unresolved",
			SortBy:           ErrorSortCount,
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, float64(3), rows[0].Count)

		assert.Equal(t, []string{`stack.filename:"*say \"hi\".js" transaction:"/checkout\"" is:unresolved project:web`}, got["query"])
		assert.Equal(t, []string{"-count"}, got["sort"])
		assert.Equal(t, []string{"errors"}, got["dataset"])
		assert.Equal(t, []string{"issue", "title", "project", "last_seen()", "count()"}, got["field"])
	})

	t.Run("search spans always filters transactions", func(t *testing.T) {
		var got map[string][]string

		client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
			got = r.URL.Query()
			writeJSON(w, http.StatusOK, `{"data":[],"meta":{"fields":{},"units":{}}}`)
		})

		rows, err := client.SearchSpans(context.Background(), SearchSpansOptions{
			OrganizationSlug: "sentry",
			Transaction:      "/api/0/",
			SortBy:           SpanSortDuration,
		})
		require.NoError(t, err)
		assert.Empty(t, rows)

		assert.Equal(t, []string{`is_transaction:true transaction:"/api/0/"`}, got["query"])
		assert.Equal(t, []string{"-span.duration"}, got["sort"])
		assert.Equal(t, []string{"spans"}, got["dataset"])
	})

	t.Run("list issues joins fragments and collapses stats", func(t *testing.T) {
		var got map[string][]string

		client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
			got = r.URL.Query()
			writeJSON(w, http.StatusOK, `[]`)
		})

		_, err := client.ListIssues(context.Background(), ListIssuesOptions{
			OrganizationSlug: "sentry",
			ProjectSlug:      "web",
			Query:            "is:unresolved",
			SortBy:           IssueSortFrequency,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"is:unresolved project:web"}, got["query"])
		assert.Equal(t, []string{"freq"}, got["sort"])
		assert.Equal(t, []string{"stats", "unhandled"}, got["collapse"])
	})

	t.Run("escapeQuoted escapes backslashes before quotes", func(t *testing.T) {
		assert.Equal(t, `a\\b\"c`, escapeQuoted(`a\b"c`))
	})
}

func TestLatestEventExceptionShapes(t *testing.T) {
	single := `{"id":"e1","title":"Error: boom","message":null,"dateCreated":"2025-04-08T21:15:04.000Z","culprit":"Object.fetch(index)","platform":"javascript",
		"entries":[{"type":"exception","data":{"value":{"type":"Error","value":"boom","stacktrace":{"frames":[{"filename":"index.js","lineNo":7809,"colNo":27,"context":[[7808,"a"],[7809,"b"]]}]}}}}]}`
	multiple := `{"id":"e2","title":"ValueError","message":"","dateCreated":"2025-04-08T21:15:04.000Z","culprit":null,"platform":"python",
		"entries":[{"type":"message","data":{"formatted":"hi"}},{"type":"exception","data":{"values":[{"type":"ValueError","value":"bad","stacktrace":null}]}}]}`

	for name, body := range map[string]string{"single": single, "multiple": multiple} {
		body := body

		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/0/organizations/sentry/issues/PROJ-1/events/latest/", r.URL.Path)
				writeJSON(w, http.StatusOK, body)
			})

			event, err := client.GetLatestEventForIssue(context.Background(), "sentry", "PROJ-1")
			require.NoError(t, err)

			var payload ExceptionPayload
			for _, entry := range event.Entries {
				if entry.Type == EntryTypeException {
					payload = entry.Exception
				}
			}
			require.NotNil(t, payload)

			first, ok := payload.First()
			require.True(t, ok)
			assert.NotEmpty(t, first.Type)

			switch name {
			case "single":
				assert.IsType(t, SingleException{}, payload)
				require.NotNil(t, first.Stacktrace)
				assert.Equal(t, 7809, *first.Stacktrace.Frames[0].LineNo)
				assert.Equal(t, ContextLine{LineNo: 7809, Code: "b"}, first.Stacktrace.Frames[0].Context[1])
			case "multiple":
				assert.IsType(t, MultipleExceptions{}, payload)
				assert.Nil(t, first.Stacktrace)
			}
		})
	}
}

func TestLinks(t *testing.T) {
	Convey("Given the multi-tenant host", t, func() {
		client := NewClient("", DefaultHost)

		Convey("Links should use an organization subdomain", func() {
			So(client.IssueURL("sentry", "PROJ-1"), ShouldEqual, "https://sentry.sentry.io/issues/PROJ-1")
			So(client.TraceURL("sentry", "abc"), ShouldEqual, "https://sentry.sentry.io/explore/traces/trace/abc")
		})
	})

	Convey("Given a self-hosted instance", t, func() {
		client := NewClient("", "sentry.example.com")

		Convey("Links should be path prefixed", func() {
			So(client.IssueURL("sentry", "PROJ-1"), ShouldEqual, "https://sentry.example.com/organizations/sentry/issues/PROJ-1")
			So(client.TraceURL("sentry", "abc"), ShouldEqual, "https://sentry.example.com/organizations/sentry/explore/traces/trace/abc")
		})
	})
}

func TestExtractIssueID(t *testing.T) {
	Convey("Given issue URLs", t, func() {
		cases := []struct {
			url  string
			want IssueRef
		}{
			{"https://sentry.sentry.io/issues/1234", IssueRef{IssueID: "1234", OrganizationSlug: "sentry"}},
			{"https://sentry.io/organizations/my-org/issues/123", IssueRef{IssueID: "123", OrganizationSlug: "my-org"}},
			{"https://my-team.sentry.io/issues/123", IssueRef{IssueID: "123", OrganizationSlug: "my-team"}},
			{"https://sentry.io/sentry/issues/123/", IssueRef{IssueID: "123", OrganizationSlug: "sentry"}},
			{"https://org.sentry.io/issues/42?project=1", IssueRef{IssueID: "42", OrganizationSlug: "org"}},
		}

		for _, tc := range cases {
			ref, err := ExtractIssueID(tc.url)
			So(err, ShouldBeNil)
			So(ref, ShouldResemble, tc.want)

			again, err := ExtractIssueID(tc.url)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, ref)
		}
	})

	Convey("Given a URL without an issues segment", t, func() {
		_, err := ExtractIssueID("https://sentry.io/organizations/my-org/projects/web")

		Convey("It should fail path validation", func() {
			So(errors.Is(err, ErrInvalidIssueURL), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "/issues/{issue_id}")
		})
	})

	Convey("Given an empty string", t, func() {
		_, err := ExtractIssueID("")

		Convey("It should report a missing argument", func() {
			So(errors.Is(err, ErrMissingArgument), ShouldBeTrue)
			So(errors.Is(err, ErrInvalidIssueURL), ShouldBeFalse)
		})
	})

	Convey("Given a value that is not a URL", t, func() {
		_, err := ExtractIssueID("PROJ-123")

		So(errors.Is(err, ErrInvalidIssueURL), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "http://")
	})

	Convey("Given a URL with no way to infer the organization", t, func() {
		_, err := ExtractIssueID("https://sentry.io/issues/123")

		So(errors.Is(err, ErrInvalidIssueURL), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "organization")
	})
}

func TestPathSegmentsAreEscaped(t *testing.T) {
	const slug = "evil/../admin?x=1"
	escaped := url.PathEscape(slug)

	var paths []string
	client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		http.NotFound(w, r)
	})

	ctx := context.Background()

	calls := map[string]struct {
		call func() error
		want string
	}{
		"list teams": {
			call: func() error { _, err := client.ListTeams(ctx, slug); return err },
			want: "/api/0/organizations/" + escaped + "/teams/",
		},
		"create team": {
			call: func() error { _, err := client.CreateTeam(ctx, slug, "goats"); return err },
			want: "/api/0/organizations/" + escaped + "/teams/",
		},
		"list projects": {
			call: func() error { _, err := client.ListProjects(ctx, slug); return err },
			want: "/api/0/organizations/" + escaped + "/projects/",
		},
		"create project": {
			call: func() error {
				_, _, err := client.CreateProject(ctx, CreateProjectOptions{OrganizationSlug: slug, TeamSlug: slug, Name: "x"})
				return err
			},
			want: "/api/0/teams/" + escaped + "/" + escaped + "/projects/",
		},
		"list issues": {
			call: func() error { _, err := client.ListIssues(ctx, ListIssuesOptions{OrganizationSlug: slug}); return err },
			want: "/api/0/organizations/" + escaped + "/issues/",
		},
		"get issue": {
			call: func() error { _, err := client.GetIssue(ctx, slug, "1?x"); return err },
			want: "/api/0/organizations/" + escaped + "/issues/1%3Fx/",
		},
		"latest event": {
			call: func() error { _, err := client.GetLatestEventForIssue(ctx, slug, "1"); return err },
			want: "/api/0/organizations/" + escaped + "/issues/1/events/latest/",
		},
		"search errors": {
			call: func() error { _, err := client.SearchErrors(ctx, SearchErrorsOptions{OrganizationSlug: slug}); return err },
			want: "/api/0/organizations/" + escaped + "/events/",
		},
		"search spans": {
			call: func() error { _, err := client.SearchSpans(ctx, SearchSpansOptions{OrganizationSlug: slug}); return err },
			want: "/api/0/organizations/" + escaped + "/events/",
		},
	}

	for name, tc := range calls {
		t.Run(name, func(t *testing.T) {
			paths = nil

			require.Error(t, tc.call())
			require.Len(t, paths, 1)
			assert.Equal(t, tc.want, paths[0])
		})
	}

	t.Run("client key of a created project", func(t *testing.T) {
		var keyPath string
		client := newTestClient(t, "token", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/keys/") {
				keyPath = r.URL.EscapedPath()
				http.NotFound(w, r)
				return
			}
			writeJSON(w, http.StatusCreated, `{"id":"1","slug":"a/b","name":"a/b"}`)
		})

		_, _, err := client.CreateProject(ctx, CreateProjectOptions{OrganizationSlug: slug, TeamSlug: "goats", Name: "a/b"})
		require.NoError(t, err)
		assert.Equal(t, "/api/0/projects/"+escaped+"/a%2Fb/keys/", keyPath)
	})
}
