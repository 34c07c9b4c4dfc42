package config

import "time"

// RealtimeConfig controls the reconnecting channel and the poller.
type RealtimeConfig struct {
	// ReconnectAttempts is the maximum number of automatic reconnects.
	ReconnectAttempts int `env:"REALTIME_RECONNECT_ATTEMPTS" envDefault:"5"`

	// ReconnectDelay is the fixed delay before each reconnect.
	ReconnectDelay time.Duration `env:"REALTIME_RECONNECT_DELAY" envDefault:"3s"`

	// PollInterval is the delay between poll requests.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`

	// PollMaxAttempts bounds the requests of one polling run.
	PollMaxAttempts int `env:"POLL_MAX_ATTEMPTS" envDefault:"50"`
}

// Sanitize applies guardrails to realtime configuration values.
func (r *RealtimeConfig) Sanitize() {
	if r.ReconnectAttempts <= 0 {
		r.ReconnectAttempts = 5
	}
	if r.ReconnectDelay <= 0 {
		r.ReconnectDelay = 3 * time.Second
	}
	if r.PollInterval < 100*time.Millisecond {
		r.PollInterval = 100 * time.Millisecond
	}
	if r.PollMaxAttempts <= 0 {
		r.PollMaxAttempts = 50
	}
}
