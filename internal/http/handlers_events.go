package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/target/esg-checklist-ui/internal/adapters/wschannel"
	"github.com/target/esg-checklist-ui/internal/observability/metrics"
	"github.com/target/esg-checklist-ui/internal/observability/statsd"
	"github.com/target/esg-checklist-ui/internal/ports"
	"github.com/target/esg-checklist-ui/internal/service"
)

const (
	// uploadDoneExpr stops upload polling once processing has ended either way.
	uploadDoneExpr = "status == 'completed' || status == 'failed'"

	relayBuffer = 32
)

// RealtimeOptions configures the channels opened for topic relays.
type RealtimeOptions struct {
	// WSBase is the websocket base of the backend (http(s) is mapped to ws(s)).
	WSBase               string
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	// Dialer overrides the websocket dialer (tests).
	Dialer wschannel.Dialer
}

// PollOptions configures upload status polling.
type PollOptions struct {
	Interval    time.Duration
	MaxAttempts int
}

// EventHandlers relays backend realtime data to the browser over Server-Sent Events.
type EventHandlers struct {
	Session   SessionService
	Resources ports.ResourceClient
	Realtime  RealtimeOptions
	Poll      PollOptions
	KeepAlive time.Duration
	Metrics   statsd.Sink
	Logger    *slog.Logger
}

func (h *EventHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *EventHandlers) keepAlive() time.Duration {
	if h.KeepAlive > 0 {
		return h.KeepAlive
	}
	return defaultKeepAlive
}

type stateEvent struct {
	State string `json:"state"`
}

type errorEvent struct {
	Error string `json:"error"`
}

// Topic relays one websocket topic. The channel lives as long as the request:
// closing the page disconnects it.
// GET /events/{topic}.
func (h *EventHandlers) Topic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger().With("topic", r.PathValue("topic"), "request_id", RequestID(ctx))

	endpoint, err := wschannel.Endpoint(h.Realtime.WSBase, r.PathValue("topic"))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: ErrCodeInvalidRequest, Err: err})
		return
	}

	messages := make(chan any, relayBuffer)
	states := make(chan wschannel.State, relayBuffer)
	ch, err := wschannel.New(wschannel.Options{
		Endpoint:             endpoint,
		Token:                h.Session.BearerToken,
		Dialer:               h.Realtime.Dialer,
		MaxReconnectAttempts: h.Realtime.MaxReconnectAttempts,
		ReconnectDelay:       h.Realtime.ReconnectDelay,
		OnMessage: func(msg any) {
			select {
			case messages <- msg:
			default:
				logger.Warn("relay buffer full; message dropped")
			}
		},
		OnState: func(s wschannel.State) {
			select {
			case states <- s:
			default:
			}
		},
		Logger: logger,
	})
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: ErrCodeInvalidRequest, Err: err})
		return
	}

	stream, err := newSSEWriter(w)
	if err != nil {
		logger.WarnContext(ctx, "event stream unavailable", "error", err)
		return
	}

	var (
		started  = time.Now()
		relayed  int
		relayErr error
	)
	defer func() {
		metrics.EmitRealtime(h.Metrics, metrics.RealtimeMetric{
			Topic:    r.PathValue("topic"),
			Messages: relayed,
			Duration: time.Since(started),
			Err:      relayErr,
		})
	}()

	ch.Connect(ctx)
	defer func() {
		ch.Disconnect()
		ch.Wait()
	}()

	ticker := time.NewTicker(h.keepAlive())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-messages:
			if err = stream.Event("message", msg); err != nil {
				return
			}
			relayed++
		case s := <-states:
			if err = stream.Event("state", stateEvent{State: s.String()}); err != nil {
				return
			}
			if terminal := ch.Err(); terminal != nil {
				relayed += drainMessages(stream, messages)
				relayErr = terminal
				_ = stream.Event("error", errorEvent{Error: terminal.Error()})
				return
			}
		case <-ticker.C:
			if err = stream.KeepAlive(); err != nil {
				return
			}
		}
	}
}

// drainMessages relays whatever is still buffered and returns how many were sent.
func drainMessages(stream *sseWriter, messages <-chan any) int {
	n := 0
	for {
		select {
		case msg := <-messages:
			if stream.Event("message", msg) != nil {
				return n
			}
			n++
		default:
			return n
		}
	}
}

type pollDoneEvent struct {
	Attempts int    `json:"attempts"`
	Timeout  bool   `json:"timeout,omitempty"`
	Error    string `json:"error,omitempty"`
}

// UploadStatus polls an upload until processing completes or fails and
// streams every response.
// GET /uploads/{id}/status.
func (h *EventHandlers) UploadStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: ErrCodeInvalidRequest, Err: errors.New("upload id is required")})
		return
	}
	stopWhen, err := service.JMESPathCondition(uploadDoneExpr)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error", Err: err})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	results := make(chan any, 1)
	poller, err := service.NewPoller(service.PollerOptions{
		Client:      h.Resources,
		Token:       h.Session.BearerToken,
		Path:        "/api/uploads/" + url.PathEscape(id),
		Interval:    h.Poll.Interval,
		MaxAttempts: h.Poll.MaxAttempts,
		StopWhen:    stopWhen,
		OnResult: func(data any) {
			select {
			case results <- data:
			case <-ctx.Done():
			}
		},
		Logger: h.logger(),
	})
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error", Err: err})
		return
	}

	stream, err := newSSEWriter(w)
	if err != nil {
		h.logger().WarnContext(ctx, "event stream unavailable", "error", err)
		return
	}

	poller.Start(ctx)
	defer poller.Stop()
	done := make(chan struct{})
	go func() {
		poller.Wait()
		close(done)
	}()

	ticker := time.NewTicker(h.keepAlive())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-results:
			if err = stream.Event("status", data); err != nil {
				return
			}
		case <-done:
			select {
			case data := <-results:
				if err = stream.Event("status", data); err != nil {
					return
				}
			default:
			}
			timedOut := errors.Is(poller.Err(), service.ErrPollingTimeout)
			metrics.EmitPoll(h.Metrics, metrics.PollMetric{
				Resource: "upload",
				Attempts: poller.Attempts(),
				Timeout:  timedOut,
				Err:      poller.Err(),
			})
			_ = stream.Event("done", pollDoneEvent{
				Attempts: poller.Attempts(),
				Timeout:  timedOut,
				Error:    poller.ErrorMessage(),
			})
			return
		case <-ticker.C:
			if err = stream.KeepAlive(); err != nil {
				return
			}
		}
	}
}
