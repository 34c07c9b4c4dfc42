package config

import (
	"strings"
	"time"
)

// SessionConfig controls the session controller and the screens around it.
type SessionConfig struct {
	// IdentityAttempts bounds current-user fetch attempts on login and startup.
	IdentityAttempts int `env:"SESSION_IDENTITY_ATTEMPTS" envDefault:"3"`

	// IdentityRetryDelay is the fixed delay between identity attempts.
	IdentityRetryDelay time.Duration `env:"SESSION_IDENTITY_RETRY_DELAY" envDefault:"500ms"`

	// LogoutTimeout bounds the background server-side logout call.
	LogoutTimeout time.Duration `env:"SESSION_LOGOUT_TIMEOUT" envDefault:"5s"`

	// LoginPath is where unauthenticated visitors are sent.
	LoginPath string `env:"SESSION_LOGIN_PATH" envDefault:"/login"`

	// LandingPath is the default authenticated page.
	LandingPath string `env:"SESSION_LANDING_PATH" envDefault:"/dashboard"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.IdentityAttempts < 1 {
		s.IdentityAttempts = 1
	}
	if s.IdentityAttempts > 10 {
		s.IdentityAttempts = 10
	}
	if s.IdentityRetryDelay <= 0 {
		s.IdentityRetryDelay = 500 * time.Millisecond
	}
	if s.LogoutTimeout <= 0 {
		s.LogoutTimeout = 5 * time.Second
	}
	s.LoginPath = normalizePath(s.LoginPath, "/login")
	s.LandingPath = normalizePath(s.LandingPath, "/dashboard")
}

func normalizePath(p, fallback string) string {
	p = strings.TrimSpace(p)
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return fallback
	}
	return p
}
