package service

import (
	"context"
	"errors"
	"log/slog"

	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
	"github.com/target/esg-checklist-ui/internal/ports"
	"golang.org/x/sync/errgroup"
)

const (
	uploadsPath       = "/api/uploads"
	notificationsPath = "/api/notifications"
)

// WidgetCount is one dashboard counter. Error is the widget-local failure
// message; the rest of the dashboard still renders when it is set.
type WidgetCount struct {
	Count int
	Error string
}

// DashboardSummary is the data behind the dashboard screen.
type DashboardSummary struct {
	Uploads       WidgetCount
	Notifications WidgetCount
}

// DashboardService loads dashboard counters from the backend.
type DashboardService struct {
	client ports.ResourceClient
	logger *slog.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(client ports.ResourceClient, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{client: client, logger: logger}
}

// Summary fetches the counters concurrently. The returned error joins every
// widget failure; the summary is always usable.
func (s *DashboardService) Summary(ctx context.Context, token string) (DashboardSummary, error) {
	var (
		summary   DashboardSummary
		uploadErr error
		notifyErr error
		g         errgroup.Group
	)
	g.Go(func() error {
		summary.Uploads, uploadErr = s.count(ctx, uploadsPath, token)
		return nil
	})
	g.Go(func() error {
		summary.Notifications, notifyErr = s.count(ctx, notificationsPath, token)
		return nil
	})
	_ = g.Wait()

	return summary, errors.Join(uploadErr, notifyErr)
}

type listPayload struct {
	Results []map[string]any `json:"results"`
}

func (s *DashboardService) count(ctx context.Context, path, token string) (WidgetCount, error) {
	var payload listPayload
	if err := s.client.GetJSON(ctx, path, token, &payload); err != nil {
		s.logger.DebugContext(ctx, "dashboard widget failed", "path", path, "error", err)
		return WidgetCount{Error: domainauth.UserMessage(err, domainauth.MsgRequestFailed)}, err
	}
	return WidgetCount{Count: len(payload.Results)}, nil
}
