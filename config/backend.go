package config

import (
	"strings"
	"time"
)

// BackendConfig points the console at the ESG Checklist REST API.
type BackendConfig struct {
	// URL is the REST base URL, e.g. http://localhost:8000.
	URL string `env:"BACKEND_URL" envDefault:"http://localhost:8000"`

	// WSURL is the websocket base URL. Derived from URL when empty.
	WSURL string `env:"BACKEND_WS_URL" envDefault:""`

	// Timeout bounds each backend request.
	Timeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"15s"`

	// RetryMax is the number of retries for read-only resource requests.
	RetryMax     int           `env:"BACKEND_RETRY_MAX"      envDefault:"3"`
	RetryWaitMin time.Duration `env:"BACKEND_RETRY_WAIT_MIN" envDefault:"250ms"`
	RetryWaitMax time.Duration `env:"BACKEND_RETRY_WAIT_MAX" envDefault:"2s"`
}

// Sanitize applies guardrails to backend configuration values.
func (b *BackendConfig) Sanitize() {
	b.URL = strings.TrimRight(strings.TrimSpace(b.URL), "/")
	b.WSURL = strings.TrimRight(strings.TrimSpace(b.WSURL), "/")
	if b.WSURL == "" {
		b.WSURL = b.URL
	}
	if b.Timeout <= 0 {
		b.Timeout = 15 * time.Second
	}
	if b.RetryMax < 0 {
		b.RetryMax = 0
	}
	if b.RetryMax > 10 {
		b.RetryMax = 10
	}
	if b.RetryWaitMin <= 0 {
		b.RetryWaitMin = 250 * time.Millisecond
	}
	if b.RetryWaitMax < b.RetryWaitMin {
		b.RetryWaitMax = b.RetryWaitMin
	}
}
