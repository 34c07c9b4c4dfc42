package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/esg-checklist-ui/config"
	httpx "github.com/target/esg-checklist-ui/internal/http"
	"github.com/target/esg-checklist-ui/internal/observability/metrics"
	"golang.org/x/sync/errgroup"
)

// ServiceOrchestrationConfig contains dependencies for RunServicesWithShutdown.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger

	// Listener, when set, is served instead of binding Config.HTTP.Addr.
	Listener net.Listener
	Renderer *httpx.TemplateRenderer
}

// RunServicesWithShutdown validates the stored session, then serves the
// console and watches storage until ctx is cancelled or SIGINT/SIGTERM arrives.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler, err := buildHTTPHandler(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
		Renderer: cfg.Renderer,
	})
	if err != nil {
		return err
	}
	server := newHTTPServer(handler, cfg.Config.HTTP)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	session := cfg.Services.Session
	// Requests arriving before validation finishes see the loading state.
	g.Go(func() error {
		started := time.Now()
		session.Start(gctx)
		authenticated := session.State(gctx).IsAuthenticated
		metrics.EmitSession(cfg.Services.Metrics, metrics.SessionMetric{
			Transition:    "startup",
			Authenticated: authenticated,
			Duration:      time.Since(started),
		})
		logger.InfoContext(gctx, "session validated", "authenticated", authenticated)
		return nil
	})
	g.Go(func() error {
		return cfg.Services.Monitor.Run(gctx)
	})
	g.Go(func() error {
		return serveHTTP(logger, server, cfg.Listener)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down services...")
		// The parent context is already done; shut down on a fresh one.
		err := shutdownHTTPServer(context.WithoutCancel(gctx), server, cfg.Config.HTTP.ShutdownTimeout, logger)
		session.Wait()
		if cerr := cfg.Services.Metrics.Close(); cerr != nil {
			logger.Warn("close metrics client failed", "error", cerr)
		}
		return err
	})

	return g.Wait()
}
