package httpx

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	esgconsole "github.com/target/esg-checklist-ui"
	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
	"github.com/target/esg-checklist-ui/internal/observability/statsd"
	"github.com/target/esg-checklist-ui/internal/ports"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Session SessionService
	// Ready is closed once startup validation has finished (reported by /healthz).
	Ready       <-chan struct{}
	Monitor     VisibilityNotifier
	Preferences PreferencesStore
	Dashboard   DashboardLoader
	Resources   ports.ResourceClient

	Realtime RealtimeOptions
	Poll     PollOptions

	LoginPath   string
	LandingPath string
	// KeepAlive is the comment interval on event streams (default 25s).
	KeepAlive time.Duration
	// Metrics receives session and realtime metrics (optional).
	Metrics statsd.Sink

	// Renderer overrides template loading (tests).
	Renderer *TemplateRenderer
	IsDev    bool         // Development mode: templates and static files are read from disk.
	Logger   *slog.Logger // Logger for template and HTTP errors (optional)
}

// NewRouter creates and configures the HTTP router with browser detection.
func NewRouter(services RouterServices) (http.Handler, error) {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loginPath := services.LoginPath
	if loginPath == "" {
		loginPath = defaultLoginPath
	}
	landingPath := services.LandingPath
	if landingPath == "" {
		landingPath = defaultLandingPath
	}

	renderer := services.Renderer
	if renderer == nil {
		var err error
		renderer, err = setupRenderer(services.IsDev, logger)
		if err != nil {
			return nil, err
		}
	}

	authHandlers := &AuthHandlers{
		Session:     services.Session,
		Renderer:    renderer,
		LoginPath:   loginPath,
		LandingPath: landingPath,
		Metrics:     services.Metrics,
		Logger:      logger,
	}
	sessionHandlers := &SessionHandlers{
		Session:   services.Session,
		Monitor:   services.Monitor,
		KeepAlive: services.KeepAlive,
		Logger:    logger,
	}
	uiHandlers := &UIHandlers{
		T:           renderer,
		Session:     services.Session,
		Preferences: services.Preferences,
		Summaries:   services.Dashboard,
		LandingPath: landingPath,
		Logger:      logger,
	}
	eventHandlers := &EventHandlers{
		Session:   services.Session,
		Resources: services.Resources,
		Realtime:  services.Realtime,
		Poll:      services.Poll,
		KeepAlive: services.KeepAlive,
		Metrics:   services.Metrics,
		Logger:    logger,
	}

	guard := GuardOptions{LoginPath: loginPath, LandingPath: landingPath, Renderer: renderer}
	protected := RequireSession(services.Session, guard)
	guard.RequiredRole = domainauth.RoleAdmin
	adminOnly := RequireSession(services.Session, guard)

	mux := http.NewServeMux()
	registerAuthRoutes(mux, authHandlers, loginPath)
	mux.Handle("POST /session/visibility", http.HandlerFunc(sessionHandlers.Visibility))
	mux.Handle("GET /session/events", protected(http.HandlerFunc(sessionHandlers.Events)))

	mux.Handle("GET /{$}", protected(http.HandlerFunc(uiHandlers.Index)))
	mux.Handle("GET /dashboard", protected(http.HandlerFunc(uiHandlers.Dashboard)))
	mux.Handle("GET /settings", protected(http.HandlerFunc(uiHandlers.Settings)))
	mux.Handle("POST /settings", protected(http.HandlerFunc(uiHandlers.SaveSettings)))
	mux.Handle("GET /admin", adminOnly(http.HandlerFunc(uiHandlers.Admin)))

	mux.Handle("GET /events/{topic}", protected(http.HandlerFunc(eventHandlers.Topic)))
	mux.Handle("GET /uploads/{id}/status", protected(http.HandlerFunc(eventHandlers.UploadStatus)))

	mux.Handle("GET /healthz", healthHandler(services.Ready))
	mux.Handle("GET /static/", staticHandler(services.IsDev, logger))

	return BrowserDetection()(mux), nil
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, loginPath string) {
	mux.Handle("GET "+loginPath, http.HandlerFunc(h.LoginPage))
	mux.Handle("POST "+loginPath, http.HandlerFunc(h.Login))
	mux.Handle("POST /logout", http.HandlerFunc(h.Logout))
	mux.Handle("GET /auth/status", http.HandlerFunc(h.Status))
}

// setupRenderer loads templates from disk in dev mode and from the embedded FS otherwise.
func setupRenderer(isDev bool, logger *slog.Logger) (*TemplateRenderer, error) {
	var templateFS fs.FS
	if isDev {
		templateFS = os.DirFS(TemplatePathFromRoot)
	} else {
		sub, err := fs.Sub(esgconsole.TemplateFS, TemplatePathFromRoot)
		if err != nil {
			return nil, fmt.Errorf("open embedded templates: %w", err)
		}
		templateFS = sub
	}
	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: templateFS, DevMode: isDev, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("create template renderer: %w", err)
	}
	return tr, nil
}

// staticHandler serves /static/* from disk in dev mode and from the embedded FS otherwise.
func staticHandler(isDev bool, logger *slog.Logger) http.Handler {
	if isDev {
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir(StaticPathFromRoot))), isDev)
	}
	staticSub, err := fs.Sub(esgconsole.StaticFS, StaticPathFromRoot)
	if err != nil {
		logger.Error("failed to create sub-filesystem for static assets", "error", err)
		return http.NotFoundHandler()
	}
	return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServerFS(staticSub)), isDev)
}

func staticWithCacheHeaders(next http.Handler, isDev bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isDev {
			w.Header().Set("Cache-Control", "no-cache")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}
		next.ServeHTTP(w, r)
	})
}
