package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
	"github.com/target/esg-checklist-ui/internal/observability/metrics"
	"github.com/target/esg-checklist-ui/internal/observability/statsd"
)

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Session     SessionService
	Renderer    *TemplateRenderer
	LoginPath   string
	LandingPath string
	Metrics     statsd.Sink
	Logger      *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) loginPath() string {
	if h.LoginPath != "" {
		return h.LoginPath
	}
	return defaultLoginPath
}

func (h *AuthHandlers) landingPath() string {
	if h.LandingPath != "" {
		return h.LandingPath
	}
	return defaultLandingPath
}

// LoginPage renders the login form.
// GET /login?next=<optional path>.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get(nextParam)
	if h.Session.State(r.Context()).IsAuthenticated {
		http.Redirect(w, r, resolveNext(next, h.landingPath(), h.loginPath()), http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginForm{Next: resolveNext(next, "", h.loginPath())})
}

type loginForm struct {
	Email string
	Next  string
	Error string
}

// Login authenticates the submitted credentials. On success the navigation
// intent is consumed once and the visitor continues to it, or to the landing page.
// POST /login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: ErrCodeInvalidRequest, Err: err})
		return
	}
	form := loginForm{
		Email: strings.TrimSpace(r.PostFormValue("email")),
		Next:  resolveNext(r.PostFormValue(nextParam), "", h.loginPath()),
	}

	started := time.Now()
	err := h.Session.Login(r.Context(), form.Email, r.PostFormValue("password"))
	metrics.EmitSession(h.Metrics, metrics.SessionMetric{
		Transition:    "login",
		Authenticated: err == nil,
		Duration:      time.Since(started),
		Err:           err,
	})
	if err != nil {
		status := loginFailureStatus(err)
		form.Error = h.Session.State(r.Context()).Error
		if form.Error == "" {
			form.Error = domainauth.UserMessage(err, domainauth.MsgLoginFailed)
		}
		h.logger().InfoContext(r.Context(), "login failed", "status", status, "request_id", RequestID(r.Context()))
		if !IsBrowserRequest(r) {
			WriteError(w, ErrorParams{Code: status, ErrCode: ErrCodeLoginFailed, Err: errors.New(form.Error)})
			return
		}
		h.renderLogin(w, r, status, form)
		return
	}

	dest := form.Next
	if dest == "" {
		dest = h.landingPath()
	}
	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":      "success",
			"redirect_to": dest,
			"session":     h.Session.State(r.Context()),
		})
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// Logout ends the session locally and sends the visitor to the login screen.
// POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.Session.Logout(r.Context())
	metrics.EmitSession(h.Metrics, metrics.SessionMetric{Transition: "logout"})

	isAJAX := strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
	if isAJAX || !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": h.loginPath(),
		})
		return
	}
	http.Redirect(w, r, h.loginPath(), http.StatusSeeOther)
}

// Status returns the current session snapshot.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Session.State(r.Context()))
}

func (h *AuthHandlers) renderLogin(w http.ResponseWriter, r *http.Request, status int, form loginForm) {
	data := newPageData(r, PageLogin)
	data.Next = form.Next
	data.Error = form.Error
	data.Data = form.Email
	if h.Renderer == nil {
		WriteJSON(w, status, map[string]string{"error": form.Error, nextParam: form.Next})
		return
	}
	if err := h.Renderer.Render(w, status, data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// loginFailureStatus maps a login failure to the response status.
func loginFailureStatus(err error) int {
	switch domainauth.AsFailure(err).Kind {
	case domainauth.FailureCredential:
		return http.StatusUnauthorized
	case domainauth.FailureValidation:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
