package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func gathered(reg *prometheus.Registry, name string) map[string]float64 {
	families, err := reg.Gather()
	So(err, ShouldBeNil)

	out := map[string]float64{}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}

		for _, metric := range family.GetMetric() {
			key := ""
			for _, label := range metric.GetLabel() {
				key += label.GetName() + "=" + label.GetValue() + ","
			}

			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				out[key] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}

	return out
}

func TestRecorder(t *testing.T) {
	Convey("Given a recorder on a fresh registry", t, func() {
		reg := prometheus.NewRegistry()
		recorder := NewRecorder(reg)

		Convey("Tool calls should be counted by outcome", func() {
			recorder.ToolCall("list_teams", OutcomeSucceeded, time.Millisecond)
			recorder.ToolCall("list_teams", OutcomeSucceeded, time.Millisecond)
			recorder.ToolCall("list_teams", OutcomeRejected, 0)

			calls := gathered(reg, "sentry_mcp_tool_calls_total")
			So(calls["outcome=succeeded,tool=list_teams,"], ShouldEqual, 2)
			So(calls["outcome=rejected,tool=list_teams,"], ShouldEqual, 1)

			Convey("Only calls that reached a handler should be timed", func() {
				durations := gathered(reg, "sentry_mcp_tool_call_duration_seconds")
				So(durations["tool=list_teams,"], ShouldEqual, 2)
			})
		})

		Convey("Upstream requests without a response should be labelled as errors", func() {
			recorder.UpstreamRequest("GET", 200)
			recorder.UpstreamRequest("GET", 0)

			requests := gathered(reg, "sentry_mcp_upstream_requests_total")
			So(requests["method=GET,status=200,"], ShouldEqual, 1)
			So(requests["method=GET,status=error,"], ShouldEqual, 1)
		})
	})

	Convey("Given a nil recorder", t, func() {
		var recorder *Recorder

		Convey("Recording should be a no-op", func() {
			So(func() {
				recorder.ToolCall("help", OutcomeSucceeded, time.Second)
				recorder.UpstreamRequest("POST", 500)
			}, ShouldNotPanic)
		})
	})
}
