package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/target/esg-checklist-ui/internal/service"
)

// PreferencesStore is a minimal interface for the settings UI.
type PreferencesStore interface {
	Get(ctx context.Context) service.Preferences
	SetDarkMode(ctx context.Context, on bool) error
	SaveSettings(ctx context.Context, settings service.UserSettings) (service.UserSettings, error)
}

// DashboardLoader is a minimal interface for the dashboard UI.
type DashboardLoader interface {
	Summary(ctx context.Context, token string) (service.DashboardSummary, error)
}

// Compile-time interface assertions to ensure concrete services satisfy their UI interfaces.
var (
	_ SessionService     = (*service.SessionController)(nil)
	_ VisibilityNotifier = (*service.SessionMonitor)(nil)
	_ PreferencesStore   = (*service.PreferencesService)(nil)
	_ DashboardLoader    = (*service.DashboardService)(nil)
)

// UIHandlers serves the protected pages.
type UIHandlers struct {
	T           *TemplateRenderer
	Session     SessionService
	Preferences PreferencesStore
	Summaries   DashboardLoader
	LandingPath string
	Logger      *slog.Logger
}

func (h *UIHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// page builds PageData with the stored display preferences applied.
func (h *UIHandlers) page(r *http.Request, page string) (PageData, service.Preferences) {
	data := newPageData(r, page)
	prefs := service.Preferences{Settings: service.DefaultUserSettings()}
	if h.Preferences != nil {
		prefs = h.Preferences.Get(r.Context())
	}
	data.DarkMode = prefs.DarkMode
	return data, prefs
}

func (h *UIHandlers) render(w http.ResponseWriter, r *http.Request, status int, data PageData) {
	if err := h.T.Render(w, status, data); err != nil {
		h.logger().ErrorContext(r.Context(), "render page failed", "page", data.Page, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Index sends the visitor to the landing page.
// GET /.
func (h *UIHandlers) Index(w http.ResponseWriter, r *http.Request) {
	landing := h.LandingPath
	if landing == "" {
		landing = defaultLandingPath
	}
	http.Redirect(w, r, landing, http.StatusSeeOther)
}

// Admin serves the administration page.
// GET /admin (role admin).
func (h *UIHandlers) Admin(w http.ResponseWriter, r *http.Request) {
	data, _ := h.page(r, PageAdmin)
	h.render(w, r, http.StatusOK, data)
}
