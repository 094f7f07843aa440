package tools

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/theapemachine/mcp-server-sentry/pkg/format"
	"github.com/theapemachine/mcp-server-sentry/pkg/metrics"
	"github.com/theapemachine/mcp-server-sentry/pkg/sentry"
)

// ErrTimeout is returned when a handler does not finish within the
// dispatcher's per-call timeout.
var ErrTimeout = errors.New("the request to Sentry timed out")

// maxErrorDetail bounds the error text shown to callers outside production.
const maxErrorDetail = 2000

// Dispatcher validates and runs tool calls for one session. Every call it
// accepts completes with a Result; only rejected calls return an error.
type Dispatcher struct {
	registry   *Registry
	session    SessionContext
	client     Upstream
	logger     *log.Logger
	metrics    *metrics.Recorder
	timeout    time.Duration
	production bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger failures are reported to.
func WithLogger(logger *log.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics records every call on recorder.
func WithMetrics(recorder *metrics.Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = recorder
	}
}

// WithTimeout bounds every call. Zero disables the bound.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithProduction hides raw error text from callers.
func WithProduction(production bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.production = production
	}
}

// NewDispatcher returns a dispatcher serving session with client.
func NewDispatcher(registry *Registry, session SessionContext, client Upstream, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		session:  session,
		client:   client,
		logger:   log.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.logger = d.logger.WithPrefix("dispatcher")

	return d
}

// Session returns the session the dispatcher serves.
func (d *Dispatcher) Session() SessionContext {
	return d.session
}

// Call validates a call against the registry and runs its handler. A call
// that fails validation returns a *RejectedError and never reaches the
// handler. Handler failures of any kind are returned as error results.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) (Result, error) {
	start := time.Now()

	def, ok := d.registry.Lookup(name)
	if !ok {
		d.metrics.ToolCall(name, metrics.OutcomeRejected, time.Since(start))
		return Result{}, &RejectedError{Tool: name, Err: ErrUnknownTool}
	}

	validated, err := def.Validate(args)
	if err != nil {
		d.metrics.ToolCall(name, metrics.OutcomeRejected, time.Since(start))
		return Result{}, &RejectedError{Tool: name, Err: err}
	}

	text, err := d.execute(ctx, def, Call{
		Session: d.session,
		Client:  d.client,
		Args:    validated,
	})
	if err != nil {
		d.metrics.ToolCall(name, metrics.OutcomeUpstreamFailed, time.Since(start))
		return Result{Text: d.renderError(name, err), IsError: true}, nil
	}

	d.metrics.ToolCall(name, metrics.OutcomeSucceeded, time.Since(start))
	return Result{Text: text}, nil
}

type outcome struct {
	text string
	err  error
}

func (d *Dispatcher) execute(ctx context.Context, def *ToolDefinition, call Call) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic in %s handler: %v", def.Name, r)}
			}
		}()

		text, err := def.Handler(ctx, call)
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", d.timeoutError()
		}
		return out.text, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", d.timeoutError()
		}
		return "", ctx.Err()
	}
}

func (d *Dispatcher) timeoutError() error {
	return fmt.Errorf("%w after %s", ErrTimeout, d.timeout)
}

func (d *Dispatcher) renderError(name string, err error) string {
	var inputErr *UserInputError
	if errors.As(err, &inputErr) {
		d.logger.Warn("Tool call rejected by handler", "tool", name, "error", err)
		return format.InputError(inputErr.Error())
	}

	eventID := uuid.NewString()
	d.logger.Error("Tool call failed", "tool", name, "event_id", eventID, "error", err)

	return format.Error(eventID, d.errorDetail(err))
}

// errorDetail is the part of an error callers get to see. In production the
// upstream body and unexpected internals are withheld.
func (d *Dispatcher) errorDetail(err error) string {
	if errors.Is(err, ErrTimeout) {
		return err.Error()
	}

	if d.production {
		if apiErr, ok := sentry.IsAPIError(err); ok {
			return fmt.Sprintf("API request failed: %d %s", apiErr.StatusCode, apiErr.Status)
		}
		return ""
	}

	return truncate(err.Error(), maxErrorDetail)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n] + "..."
}
