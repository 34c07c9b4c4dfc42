package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
	"github.com/target/esg-checklist-ui/internal/service"
)

type recorded struct {
	kind  string
	name  string
	value float64
	tags  map[string]string
}

type recordingSink struct {
	mu   sync.Mutex
	seen []recorded
}

func (s *recordingSink) add(r recorded) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, r)
}

func (s *recordingSink) Count(name string, value int64, tags map[string]string) {
	s.add(recorded{kind: "count", name: name, value: float64(value), tags: tags})
}

func (s *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	s.add(recorded{kind: "gauge", name: name, value: value, tags: tags})
}

func (s *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	s.add(recorded{kind: "timing", name: name, value: float64(value), tags: tags})
}

func TestEmitSession_FailureTagsErrorClass(t *testing.T) {
	sink := &recordingSink{}

	EmitSession(sink, SessionMetric{
		Transition: "login",
		Duration:   40 * time.Millisecond,
		Err:        &domainauth.Failure{Kind: domainauth.FailureCredential},
	})

	require.Len(t, sink.seen, 2)
	assert.Equal(t, "session.transition", sink.seen[0].name)
	assert.Equal(t, map[string]string{
		"transition":    "login",
		"authenticated": "false",
		"result":        "error",
		"error_class":   "credential",
	}, sink.seen[0].tags)
	assert.Equal(t, "timing", sink.seen[1].kind)
}

func TestEmitPoll_TimeoutIsItsOwnResult(t *testing.T) {
	sink := &recordingSink{}

	EmitPoll(sink, PollMetric{Resource: "upload", Attempts: 50, Timeout: true, Err: service.ErrPollingTimeout})

	require.Len(t, sink.seen, 2)
	assert.Equal(t, "timeout", sink.seen[0].tags["result"])
	assert.NotContains(t, sink.seen[0].tags, "error_class")
	assert.InDelta(t, 50, sink.seen[1].value, 0)
}

func TestEmitRealtime(t *testing.T) {
	sink := &recordingSink{}

	EmitRealtime(sink, RealtimeMetric{Topic: "uploads", Messages: 3, Err: errors.New("boom")})

	require.Len(t, sink.seen, 2)
	assert.Equal(t, "error", sink.seen[0].tags["result"])
	assert.InDelta(t, 3, sink.seen[1].value, 0)
}

func TestEmitWithNilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitSession(nil, SessionMetric{})
		EmitPoll(nil, PollMetric{})
		EmitRealtime(nil, RealtimeMetric{})
	})
}
