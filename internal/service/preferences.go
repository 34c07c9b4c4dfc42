package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/target/esg-checklist-ui/internal/ports"
)

// UserSettings is the serialized settings object kept in storage.
type UserSettings struct {
	Language           string `json:"language"`
	Timezone           string `json:"timezone"`
	EmailNotifications bool   `json:"email_notifications"`
	ItemsPerPage       int    `json:"items_per_page"`
}

// DefaultUserSettings returns the settings used when none are stored.
func DefaultUserSettings() UserSettings {
	return UserSettings{Language: "en", Timezone: "UTC", EmailNotifications: true, ItemsPerPage: 20}
}

// Normalize fills blanks with defaults and clamps page size.
func (s UserSettings) Normalize() UserSettings {
	d := DefaultUserSettings()
	if strings.TrimSpace(s.Language) == "" {
		s.Language = d.Language
	}
	if strings.TrimSpace(s.Timezone) == "" {
		s.Timezone = d.Timezone
	}
	switch {
	case s.ItemsPerPage <= 0:
		s.ItemsPerPage = d.ItemsPerPage
	case s.ItemsPerPage > 100:
		s.ItemsPerPage = 100
	}
	return s
}

// Preferences is the full set of non-credential client state.
type Preferences struct {
	DarkMode bool         `json:"dark_mode"`
	Settings UserSettings `json:"settings"`
}

// PreferencesService reads and writes display preferences. Corrupt values are
// deleted and treated as absent.
type PreferencesService struct {
	storage ports.Storage
	logger  *slog.Logger
}

// NewPreferencesService constructs a PreferencesService.
func NewPreferencesService(storage ports.Storage, logger *slog.Logger) *PreferencesService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferencesService{storage: storage, logger: logger}
}

// Get returns the stored preferences, falling back to defaults.
func (s *PreferencesService) Get(ctx context.Context) Preferences {
	return Preferences{DarkMode: s.darkMode(ctx), Settings: s.settings(ctx)}
}

// SetDarkMode persists the dark-mode flag.
func (s *PreferencesService) SetDarkMode(ctx context.Context, on bool) error {
	if err := s.storage.SetMany(ctx, map[string]string{KeyDarkMode: strconv.FormatBool(on)}); err != nil {
		return fmt.Errorf("store dark mode: %w", err)
	}
	return nil
}

// SaveSettings normalizes and persists settings, returning what was stored.
func (s *PreferencesService) SaveSettings(ctx context.Context, settings UserSettings) (UserSettings, error) {
	settings = settings.Normalize()
	data, err := json.Marshal(settings)
	if err != nil {
		return UserSettings{}, fmt.Errorf("encode settings: %w", err)
	}
	if err = s.storage.SetMany(ctx, map[string]string{KeyUserSettings: string(data)}); err != nil {
		return UserSettings{}, fmt.Errorf("store settings: %w", err)
	}
	return settings, nil
}

func (s *PreferencesService) darkMode(ctx context.Context) bool {
	raw, ok, err := s.storage.Get(ctx, KeyDarkMode)
	if err != nil {
		s.logger.WarnContext(ctx, "read dark mode failed", "error", err)
		return false
	}
	if !ok {
		return false
	}
	on, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		s.discard(ctx, KeyDarkMode, err)
		return false
	}
	return on
}

func (s *PreferencesService) settings(ctx context.Context) UserSettings {
	raw, ok, err := s.storage.Get(ctx, KeyUserSettings)
	if err != nil {
		s.logger.WarnContext(ctx, "read settings failed", "error", err)
		return DefaultUserSettings()
	}
	if !ok {
		return DefaultUserSettings()
	}
	var settings UserSettings
	if err = json.Unmarshal([]byte(raw), &settings); err != nil {
		s.discard(ctx, KeyUserSettings, err)
		return DefaultUserSettings()
	}
	return settings.Normalize()
}

func (s *PreferencesService) discard(ctx context.Context, key string, cause error) {
	s.logger.DebugContext(ctx, "discarding corrupt preference", "key", key, "error", cause)
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "delete corrupt preference failed", "key", key, "error", err)
	}
}
