// Package metrics holds the prometheus collectors for tool calls and upstream requests.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sentry_mcp"

// Tool call outcomes.
const (
	OutcomeSucceeded      = "succeeded"
	OutcomeUpstreamFailed = "upstream_failed"
	OutcomeRejected       = "rejected"
)

// Recorder records tool call and upstream request metrics. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	upstream         *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Number of tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool calls that reached a handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Number of requests made to the Sentry API by method and status code.",
		}, []string{"method", "status"}),
	}

	if reg != nil {
		reg.MustRegister(r.toolCalls, r.toolCallDuration, r.upstream)
	}

	return r
}

// ToolCall records the outcome of a single tool call.
func (r *Recorder) ToolCall(tool, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}

	r.toolCalls.WithLabelValues(tool, outcome).Inc()

	if outcome != OutcomeRejected {
		r.toolCallDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
	}
}

// UpstreamRequest records a completed request to the Sentry API. A zero
// status means the request failed before a response arrived.
func (r *Recorder) UpstreamRequest(method string, status int) {
	if r == nil {
		return
	}

	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}

	r.upstream.WithLabelValues(method, label).Inc()
}
