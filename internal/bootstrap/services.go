package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/esg-checklist-ui/config"
	"github.com/target/esg-checklist-ui/internal/adapters/backend"
	"github.com/target/esg-checklist-ui/internal/observability/statsd"
	"github.com/target/esg-checklist-ui/internal/ports"
	"github.com/target/esg-checklist-ui/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Backend     *backend.Client
	Tokens      *service.TokenStore
	Session     *service.SessionController
	Monitor     *service.SessionMonitor
	Preferences *service.PreferencesService
	Dashboard   *service.DashboardService
	Metrics     *statsd.Client
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config  *config.AppConfig
	Storage ports.Storage
	Logger  *slog.Logger
	// Backend overrides the REST client built from Config (tests).
	Backend *backend.Client
}

// NewServices wires the backend client, storage and session services.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service config is required")
	}
	if deps.Storage == nil {
		return nil, errors.New("storage is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	client := deps.Backend
	if client == nil {
		var err error
		if client, err = backend.NewClient(backend.ClientOptions{
			BaseURL:      cfg.Backend.URL,
			Timeout:      cfg.Backend.Timeout,
			RetryMax:     cfg.Backend.RetryMax,
			RetryWaitMin: cfg.Backend.RetryWaitMin,
			RetryWaitMax: cfg.Backend.RetryWaitMax,
			Logger:       logger.With("component", "backend"),
		}); err != nil {
			return nil, fmt.Errorf("backend client: %w", err)
		}
	}

	metricsClient, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Metrics.IsEnabled(),
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  cfg.Metrics.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("metrics client: %w", err)
	}
	if metricsClient.Enabled() {
		logger.Info("metrics enabled", "statsd", cfg.Metrics.StatsdAddress)
	}

	tokens := service.NewTokenStore(deps.Storage, logger)
	session, err := service.NewSessionController(service.SessionControllerOptions{
		Client:             client,
		Tokens:             tokens,
		Logger:             logger.With("component", "session"),
		IdentityAttempts:   cfg.Session.IdentityAttempts,
		IdentityRetryDelay: cfg.Session.IdentityRetryDelay,
		LogoutTimeout:      cfg.Session.LogoutTimeout,
		LoginPath:          cfg.Session.LoginPath,
	})
	if err != nil {
		return nil, fmt.Errorf("session controller: %w", err)
	}
	monitor, err := service.NewSessionMonitor(service.SessionMonitorOptions{
		Session:  session,
		Storage:  deps.Storage,
		TokenKey: tokens.TokenKey(),
		Logger:   logger.With("component", "session-monitor"),
	})
	if err != nil {
		return nil, fmt.Errorf("session monitor: %w", err)
	}

	return &ServiceContainer{
		Backend:     client,
		Tokens:      tokens,
		Session:     session,
		Monitor:     monitor,
		Preferences: service.NewPreferencesService(deps.Storage, logger),
		Dashboard:   service.NewDashboardService(client, logger),
		Metrics:     metricsClient,
	}, nil
}
