package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
	"github.com/target/esg-checklist-ui/internal/service"
)

// SessionService is the session controller as seen by the HTTP layer.
type SessionService interface {
	SessionReader
	BearerToken(ctx context.Context) string
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context)
	Subscribe() (<-chan domainauth.Session, func())
}

// VisibilityNotifier receives page visibility changes.
type VisibilityNotifier interface {
	NotifyVisibility(v service.Visibility)
}

// SessionHandlers serves the session stream and visibility reports.
type SessionHandlers struct {
	Session   SessionService
	Monitor   VisibilityNotifier
	KeepAlive time.Duration
	Logger    *slog.Logger
}

func (h *SessionHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type visibilityRequest struct {
	State string `json:"state"`
}

// Visibility records a page visibility change.
// POST /session/visibility {"state":"visible"}.
func (h *SessionHandlers) Visibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	v, err := service.ParseVisibility(req.State)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: ErrCodeInvalidRequest, Err: err})
		return
	}
	if h.Monitor != nil {
		h.Monitor.NotifyVisibility(v)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events streams session snapshots: the current one first, then one per change.
// GET /session/events.
func (h *SessionHandlers) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	updates, cancel := h.Session.Subscribe()
	defer cancel()

	stream, err := newSSEWriter(w)
	if err != nil {
		h.logger().WarnContext(ctx, "session stream unavailable", "error", err)
		return
	}
	if err = stream.Event("session", h.Session.State(ctx)); err != nil {
		return
	}

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			if err = stream.Event("session", s); err != nil {
				h.logger().DebugContext(ctx, "session stream closed", "error", err)
				return
			}
		case <-ticker.C:
			if err = stream.KeepAlive(); err != nil {
				return
			}
		}
	}
}
