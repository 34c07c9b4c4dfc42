// Package metrics emits the console's session and realtime metrics.
package metrics

import (
	"maps"
	"time"

	obserrors "github.com/target/esg-checklist-ui/internal/observability/errors"
	"github.com/target/esg-checklist-ui/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultTimeout = "timeout"
)

// SessionMetric describes a completed session transition.
type SessionMetric struct {
	// Transition is "login", "logout" or "startup".
	Transition    string
	Authenticated bool
	Duration      time.Duration
	Err           error
}

// EmitSession records a session transition.
func EmitSession(sink statsd.Sink, in SessionMetric) {
	if sink == nil {
		return
	}
	tags := withResult(map[string]string{
		"transition":    in.Transition,
		"authenticated": boolTag(in.Authenticated),
	}, in.Err, ResultSuccess)

	sink.Count("session.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("session.duration", in.Duration, CloneTags(tags))
	}
}

// PollMetric describes a finished polling run.
type PollMetric struct {
	Resource string
	Attempts int
	Timeout  bool
	Err      error
}

// EmitPoll records a finished polling run.
func EmitPoll(sink statsd.Sink, in PollMetric) {
	if sink == nil {
		return
	}
	ok := ResultSuccess
	if in.Timeout {
		ok = ResultTimeout
	}
	var err error
	if !in.Timeout {
		err = in.Err
	}
	tags := withResult(map[string]string{"resource": in.Resource}, err, ok)

	sink.Count("poll.run", 1, tags)
	sink.Gauge("poll.attempts", float64(in.Attempts), CloneTags(tags))
}

// RealtimeMetric describes the end of a relayed realtime topic.
type RealtimeMetric struct {
	Topic    string
	Messages int
	Duration time.Duration
	Err      error
}

// EmitRealtime records a relay that ended, by client departure or by error.
func EmitRealtime(sink statsd.Sink, in RealtimeMetric) {
	if sink == nil {
		return
	}
	tags := withResult(map[string]string{"topic": in.Topic}, in.Err, ResultSuccess)

	sink.Count("realtime.relay", 1, tags)
	sink.Count("realtime.messages", int64(in.Messages), CloneTags(tags))
	if in.Duration > 0 {
		sink.Timing("realtime.duration", in.Duration, CloneTags(tags))
	}
}

func withResult(tags map[string]string, err error, ok string) map[string]string {
	if err == nil {
		tags["result"] = ok
		return tags
	}
	tags["result"] = ResultError
	if class := obserrors.Classify(err); class != "" {
		tags["error_class"] = class
	}
	return tags
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
