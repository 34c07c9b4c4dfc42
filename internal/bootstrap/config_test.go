package bootstrap

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/esg-checklist-ui/config"
)

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://esg.example.com/")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("SESSION_LOGIN_PATH", "//evil.example")
	t.Setenv("POLL_INTERVAL", "10ms")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://esg.example.com", cfg.Backend.URL)
	assert.Equal(t, "https://esg.example.com", cfg.Backend.WSURL)
	assert.Equal(t, config.StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "/login", cfg.Session.LoginPath)
	assert.Equal(t, 100*time.Millisecond, cfg.Realtime.PollInterval)
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
}

func TestLoadConfig_InvalidValue(t *testing.T) {
	t.Setenv("BACKEND_TIMEOUT", "soon")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "parse config")
}

func TestInitLogger_SetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := InitLogger(slog.LevelDebug)

	assert.Same(t, logger, slog.Default())
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}
