package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/esg-checklist-ui/internal/adapters/memstore"
)

func TestPreferencesService_Defaults(t *testing.T) {
	prefs := NewPreferencesService(memstore.New(), nil).Get(context.Background())

	assert.False(t, prefs.DarkMode)
	assert.Equal(t, DefaultUserSettings(), prefs.Settings)
}

func TestPreferencesService_RoundTrip(t *testing.T) {
	svc := NewPreferencesService(memstore.New(), nil)
	ctx := context.Background()

	require.NoError(t, svc.SetDarkMode(ctx, true))
	saved, err := svc.SaveSettings(ctx, UserSettings{Language: "fr", ItemsPerPage: 500})
	require.NoError(t, err)
	assert.Equal(t, "UTC", saved.Timezone)
	assert.Equal(t, 100, saved.ItemsPerPage)

	prefs := svc.Get(ctx)
	assert.True(t, prefs.DarkMode)
	assert.Equal(t, saved, prefs.Settings)
}

func TestPreferencesService_CorruptValuesAreDeleted(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.SetMany(ctx, map[string]string{
		KeyDarkMode:     "maybe",
		KeyUserSettings: "{not json",
	}))

	prefs := NewPreferencesService(store, nil).Get(ctx)
	assert.False(t, prefs.DarkMode)
	assert.Equal(t, DefaultUserSettings(), prefs.Settings)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestUserSettings_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   UserSettings
		want UserSettings
	}{
		{name: "empty", in: UserSettings{}, want: UserSettings{Language: "en", Timezone: "UTC", ItemsPerPage: 20}},
		{name: "kept", in: UserSettings{Language: "de", Timezone: "Europe/Berlin", EmailNotifications: true, ItemsPerPage: 50}, want: UserSettings{Language: "de", Timezone: "Europe/Berlin", EmailNotifications: true, ItemsPerPage: 50}},
		{name: "clamped", in: UserSettings{Language: "en", Timezone: "UTC", ItemsPerPage: 1000}, want: UserSettings{Language: "en", Timezone: "UTC", ItemsPerPage: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}
