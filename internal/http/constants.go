package httpx

// Page identifiers used in templates and navigation.
const (
	PageLogin     = "login"
	PageLoading   = "loading"
	PageDashboard = "dashboard"
	PageSettings  = "settings"
	PageAdmin     = "admin"
	PageError     = "error"
)

// pageTitles maps a page to its document title.
//
//nolint:gochecknoglobals // static read-only lookup
var pageTitles = map[string]string{
	PageLogin:     "Sign in",
	PageLoading:   "Loading",
	PageDashboard: "Dashboard",
	PageSettings:  "Settings",
	PageAdmin:     "Administration",
	PageError:     "Error",
}

// Template paths used when templates are read from disk.
const (
	TemplatePathFromRoot = "web/templates"       // From project root
	TemplatePathFromTest = "../../web/templates" // From internal/http test files
	StaticPathFromRoot   = "web/static"
)

const (
	defaultLoginPath   = "/login"
	defaultLandingPath = "/dashboard"

	// nextParam carries the navigation intent through the login screen.
	nextParam = "next"

	// loadingRefreshSeconds is the Refresh delay on the loading page.
	loadingRefreshSeconds = "1"
)

// API error codes.
const (
	ErrCodeAuthRequired      = "authentication_required"
	ErrCodeInsufficientPerms = "insufficient_permissions"
	ErrCodeSessionLoading    = "session_loading"
	ErrCodeInvalidJSON       = "invalid_json"
	ErrCodeInvalidRequest    = "invalid_request"
	ErrCodeLoginFailed       = "login_failed"
	ErrCodeStreamUnsupported = "streaming_unsupported"
)
