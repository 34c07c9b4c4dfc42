package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/target/esg-checklist-ui/internal/ports"
)

// Visibility is the page visibility reported by the served UI.
type Visibility string

const (
	Visible Visibility = "visible"
	Hidden  Visibility = "hidden"
)

// ParseVisibility validates a visibility string.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.ToLower(strings.TrimSpace(s))); v {
	case Visible, Hidden:
		return v, nil
	default:
		return "", fmt.Errorf("unknown visibility state %q", s)
	}
}

// sessionReconciler is the subset of SessionController the monitor drives.
type sessionReconciler interface {
	Invalidate(ctx context.Context, reason string)
	RecheckToken(ctx context.Context)
}

// watchSource is the subset of ports.Storage the monitor consumes.
type watchSource interface {
	Watch(ctx context.Context) (<-chan ports.StorageEvent, error)
}

// SessionMonitorOptions groups dependencies for SessionMonitor.
type SessionMonitorOptions struct {
	Session  sessionReconciler
	Storage  watchSource
	TokenKey string
	Logger   *slog.Logger
}

// SessionMonitor keeps the in-memory session consistent with storage when
// another process changes it, and re-checks the token when the page becomes
// visible again. It never performs network calls.
type SessionMonitor struct {
	session  sessionReconciler
	storage  watchSource
	tokenKey string
	logger   *slog.Logger

	visibility chan Visibility
	watching   chan struct{}
	watchOnce  sync.Once
}

// NewSessionMonitor constructs a SessionMonitor.
func NewSessionMonitor(opts SessionMonitorOptions) (*SessionMonitor, error) {
	if opts.Session == nil {
		return nil, errors.New("session is required")
	}
	if opts.Storage == nil {
		return nil, errors.New("storage is required")
	}
	key := opts.TokenKey
	if key == "" {
		key = KeyAccessToken
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionMonitor{
		session:    opts.Session,
		storage:    opts.Storage,
		tokenKey:   key,
		logger:     logger,
		visibility: make(chan Visibility, 8),
		watching:   make(chan struct{}),
	}, nil
}

// NotifyVisibility queues a visibility transition. It never blocks; when the
// queue is full the transition is dropped since a later one supersedes it.
func (m *SessionMonitor) NotifyVisibility(v Visibility) {
	select {
	case m.visibility <- v:
	default:
		m.logger.Debug("visibility queue full; dropping transition", "state", v)
	}
}

// Watching is closed once Run has subscribed to storage changes.
func (m *SessionMonitor) Watching() <-chan struct{} { return m.watching }

// Run consumes storage and visibility events until ctx is cancelled.
func (m *SessionMonitor) Run(ctx context.Context) error {
	events, err := m.storage.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch storage: %w", err)
	}
	m.watchOnce.Do(func() { close(m.watching) })
	m.logger.DebugContext(ctx, "session monitor started", "token_key", m.tokenKey)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				// The watch ended without cancellation; visibility checks still apply.
				events = nil
				m.logger.WarnContext(ctx, "storage watch closed")
				continue
			}
			if ev.Key == m.tokenKey && ev.Removed {
				m.session.Invalidate(ctx, "token removed by another client")
			}
		case v := <-m.visibility:
			if v == Visible {
				m.session.RecheckToken(ctx)
			}
		}
	}
}
