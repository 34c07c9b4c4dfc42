package config

import (
	"log/slog"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - backend.go: REST and websocket endpoints of the ESG Checklist API
//   - session.go: Session controller behavior and screen paths
//   - storage.go: Credential/preference storage and Redis
//   - http.go: Console HTTP server configuration
//   - realtime.go: Reconnecting channel and polling defaults
//   - observability.go: StatsD metrics
type AppConfig struct {
	// IsDev controls development mode behavior (debug logging, template reloading).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error. Empty means info (debug in dev).
	LogLevel string `env:"LOG_LEVEL" envDefault:""`

	// Backend API configuration
	Backend BackendConfig

	// Session controller configuration
	Session SessionConfig

	// Storage configuration
	Storage StorageConfig
	Redis   RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Realtime channel and polling configuration
	Realtime RealtimeConfig

	// Metrics emission
	Metrics MetricsConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Backend.Sanitize()
	c.Session.Sanitize()
	c.Storage.Sanitize()
	c.HTTP.Sanitize()
	c.Realtime.Sanitize()
	c.Metrics.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// SlogLevel resolves LogLevel, defaulting to debug in dev mode and info otherwise.
func (c *AppConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if c.IsDev {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
