package httpx

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
)

const requestIDHeader = "X-Request-ID"

// Logging returns a middleware that logs HTTP requests and responses and
// tags each request with a correlation id.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := r.Header.Get(requestIDHeader)
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", id),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *respWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Flush keeps Server-Sent Event streams working behind the middleware.
func (w *respWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *respWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

const errorBoundaryPage = `<!doctype html>
<html lang="en"><head><meta charset="utf-8"><title>Error · ESG Checklist</title></head>
<body><main role="alert"><h1>Something went wrong</h1>
<p>An unexpected error occurred while rendering this page.</p>
<p><a href="%s">Reload the page</a></p></main></body></html>
`

// Recover returns a middleware that recovers from panics and logs them.
// Browsers get a page offering a reload; API clients get a JSON error.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.Error("panic",
					slog.Any("error", err),
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method),
					slog.String("stack", string(debug.Stack())))
				if ww.wroteHeader {
					return
				}
				if IsBrowserRequest(r) {
					w.Header().Set("Content-Type", "text/html; charset=utf-8")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = fmt.Fprintf(w, errorBoundaryPage, html.EscapeString(safeRedirectPath(r.URL.RequestURI())))
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusInternalServerError,
					ErrCode: "internal_error",
					Err:     errors.New("internal server error"),
				})
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// browserRequestKey is an unexported context key type for browser request detection.
type browserRequestKey struct{}

// BrowserDetection returns a middleware that detects browser requests vs API requests.
// It sets a context value that can be used by downstream handlers to determine
// whether to return HTML or JSON responses.
func BrowserDetection() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			isBrowser := isBrowserRequest(r)
			ctx := context.WithValue(r.Context(), browserRequestKey{}, isBrowser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsBrowserRequest returns true if the current request is from a browser.
func IsBrowserRequest(r *http.Request) bool {
	if val := r.Context().Value(browserRequestKey{}); val != nil {
		if isBrowser, ok := val.(bool); ok {
			return isBrowser
		}
	}
	// Fallback to direct detection if middleware wasn't used
	return isBrowserRequest(r)
}

// isBrowserRequest determines if a request is from a browser based on:
// 1. Path prefix - static assets and JSON endpoints are not pages
// 2. Accept header - browsers navigating to a page accept text/html.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/static/") || strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}

	accept := r.Header.Get("Accept")
	if accept == "" {
		// No Accept header, assume browser for page routes
		return true
	}
	return strings.Contains(accept, "text/html")
}

// SessionReader exposes the current session snapshot.
type SessionReader interface {
	State(ctx context.Context) domainauth.Session
}

// GuardOptions configures RequireSession.
type GuardOptions struct {
	// RequiredRole, when set, must equal the user's role.
	RequiredRole domainauth.Role
	LoginPath    string
	LandingPath  string
	// Renderer draws the loading page. A plain page is used when nil.
	Renderer *TemplateRenderer
}

// RequireSession returns the route guard. While the session is loading it
// shows a neutral page and never the protected content; unauthenticated
// visitors are sent to the login screen carrying the requested path; a role
// mismatch goes to the landing page. Otherwise the user is placed in the
// request context.
func RequireSession(guard SessionReader, opts GuardOptions) func(http.Handler) http.Handler {
	if opts.LoginPath == "" {
		opts.LoginPath = defaultLoginPath
	}
	if opts.LandingPath == "" {
		opts.LandingPath = defaultLandingPath
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := guard.State(r.Context())
			switch {
			case s.IsLoading:
				writeLoading(w, r, opts.Renderer)
			case !s.IsAuthenticated:
				redirectToLogin(w, r, opts.LoginPath)
			case opts.RequiredRole != "" && s.User.Role != opts.RequiredRole:
				denyRole(w, r, opts.LandingPath)
			default:
				next.ServeHTTP(w, r.WithContext(SetUserInContext(r.Context(), s.User)))
			}
		})
	}
}

func writeLoading(w http.ResponseWriter, r *http.Request, renderer *TemplateRenderer) {
	if !IsBrowserRequest(r) {
		w.Header().Set("Retry-After", loadingRefreshSeconds)
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: ErrCodeSessionLoading,
			Err:     errors.New("session is loading"),
		})
		return
	}
	w.Header().Set("Refresh", loadingRefreshSeconds)
	if renderer != nil {
		if err := renderer.Render(w, http.StatusOK, newPageData(r, PageLoading)); err == nil {
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!doctype html><html lang="en"><body><p aria-busy="true">Checking your session…</p></body></html>`))
}

// redirectToLogin sends browsers to the login page with the current path as next.
func redirectToLogin(w http.ResponseWriter, r *http.Request, loginPath string) {
	next := safeRedirectPath(r.URL.RequestURI())
	if !IsBrowserRequest(r) {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: ErrCodeAuthRequired,
			Err:     errors.New("authentication required"),
			Details: map[string]string{nextParam: next},
		})
		return
	}
	http.Redirect(w, r, loginURL(loginPath, next), http.StatusSeeOther)
}

func denyRole(w http.ResponseWriter, r *http.Request, landingPath string) {
	if !IsBrowserRequest(r) {
		WriteError(w, ErrorParams{
			Code:    http.StatusForbidden,
			ErrCode: ErrCodeInsufficientPerms,
			Err:     errors.New("insufficient permissions"),
		})
		return
	}
	http.Redirect(w, r, landingPath, http.StatusSeeOther)
}
