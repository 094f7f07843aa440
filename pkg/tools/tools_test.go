package tools

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mcp-server-sentry/pkg/sentry"
)

var quietLogger = log.New(io.Discard)

// fakeSentry records every request path and answers with routes, falling
// back to a 404 for unknown paths.
type fakeSentry struct {
	mu     sync.Mutex
	paths  []string
	routes map[string]string
	status int
	calls  atomic.Int32
}

func (f *fakeSentry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, `{"detail":"upstream exploded"}`)
		return
	}

	body, ok := f.routes[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"not found"}`)
		return
	}

	_, _ = io.WriteString(w, body)
}

func (f *fakeSentry) requested(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.paths {
		if p == path {
			return true
		}
	}

	return false
}

func newFakeSentry(t *testing.T, routes map[string]string) (*fakeSentry, *sentry.Client) {
	t.Helper()

	fake := &fakeSentry{routes: routes}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return fake, sentry.NewClient("token", sentry.DefaultHost, sentry.WithAPIPrefix(srv.URL+"/api/0"))
}

func newTestDispatcher(session SessionContext, client Upstream, opts ...DispatcherOption) *Dispatcher {
	opts = append([]DispatcherOption{WithLogger(quietLogger), WithTimeout(5 * time.Second)}, opts...)
	return NewDispatcher(NewDefaultRegistry(), session, client, opts...)
}

func isRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}

const issueJSON = `{"id":"42","shortId":"PROJ-42","title":"TypeError: x is undefined","culprit":"app.js","firstSeen":"2025-04-03T22:51:19Z","lastSeen":"2025-04-12T11:34:11Z","count":"25","userCount":3,"permalink":"","status":"unresolved","platform":"javascript","project":{"id":"1","slug":"web","name":"web"}}`

const latestEventJSON = `{"id":"7ca573c0f4814912aaa9bdc77d1a7d51","title":"TypeError: x is undefined","message":"","dateCreated":"2025-04-08T21:15:04.000Z","culprit":"app.js","platform":"javascript",
	"entries":[{"type":"exception","data":{"values":[{"type":"TypeError","value":"x is undefined","stacktrace":{"frames":[{"filename":"app.js","function":"render","lineNo":10,"colNo":5,"context":[[9,"before"],[10,"x.y()"]]}]}}]}}]}`

func mustJSON(t *testing.T, v any) string {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}

	return string(data)
}
