package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/target/esg-checklist-ui/config"
	httpx "github.com/target/esg-checklist-ui/internal/http"
)

// HTTPServerConfig contains configuration for the console HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
	// Renderer overrides the template renderer (tests).
	Renderer *httpx.TemplateRenderer
}

// routerServices maps the container and config onto the router's dependencies.
func routerServices(cfg *HTTPServerConfig) httpx.RouterServices {
	appCfg := cfg.Config
	svc := cfg.Services
	return httpx.RouterServices{
		Session:     svc.Session,
		Ready:       svc.Session.Ready(),
		Monitor:     svc.Monitor,
		Preferences: svc.Preferences,
		Dashboard:   svc.Dashboard,
		Resources:   svc.Backend,
		Realtime: httpx.RealtimeOptions{
			WSBase:               appCfg.Backend.WSURL,
			MaxReconnectAttempts: appCfg.Realtime.ReconnectAttempts,
			ReconnectDelay:       appCfg.Realtime.ReconnectDelay,
		},
		Poll: httpx.PollOptions{
			Interval:    appCfg.Realtime.PollInterval,
			MaxAttempts: appCfg.Realtime.PollMaxAttempts,
		},
		LoginPath:   appCfg.Session.LoginPath,
		LandingPath: appCfg.Session.LandingPath,
		Metrics:     svc.Metrics,
		Renderer:    cfg.Renderer,
		IsDev:       appCfg.IsDev,
		Logger:      cfg.Logger,
	}
}

// buildHTTPHandler wraps the router as Recover -> Logging -> Router.
func buildHTTPHandler(cfg *HTTPServerConfig) (http.Handler, error) {
	router, err := httpx.NewRouter(routerServices(cfg))
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	h := httpx.Logging(cfg.Logger)(router)
	h = httpx.Recover(cfg.Logger)(h)
	return h, nil
}

// newHTTPServer builds the server. Event streams are long-lived, so only
// header reads are bounded.
func newHTTPServer(handler http.Handler, httpCfg config.HTTPConfig) *http.Server {
	return &http.Server{
		Addr:              httpCfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: httpCfg.ReadHeaderTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

// serveHTTP serves until the server is shut down. A nil listener binds server.Addr.
func serveHTTP(logger *slog.Logger, server *http.Server, ln net.Listener) error {
	var err error
	if ln != nil {
		logger.Info("starting HTTP server", "addr", ln.Addr().String())
		err = server.Serve(ln)
	} else {
		logger.Info("starting HTTP server", "addr", server.Addr)
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// shutdownHTTPServer gracefully shuts down the HTTP server.
func shutdownHTTPServer(ctx context.Context, server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		// Open event streams may outlive the deadline; cut them.
		_ = server.Close()
		return fmt.Errorf("shutdown http server: %w", err)
	}

	logger.Info("HTTP server stopped")
	return nil
}
