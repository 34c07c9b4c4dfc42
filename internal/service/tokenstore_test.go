package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/esg-checklist-ui/internal/adapters/memstore"
	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
	"github.com/target/esg-checklist-ui/internal/ports"
)

// failingStorage wraps a Storage and fails selected operations.
type failingStorage struct {
	ports.Storage
	getErr    error
	deleteErr error
}

func (f *failingStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	return f.Storage.Get(ctx, key)
}

func (f *failingStorage) Delete(ctx context.Context, keys ...string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Storage.Delete(ctx, keys...)
}

func TestTokenStore_SetGetClear(t *testing.T) {
	store := memstore.New()
	tokens := NewTokenStore(store, nil)
	ctx := context.Background()

	_, ok := tokens.Get(ctx)
	assert.False(t, ok)

	require.NoError(t, tokens.Set(ctx, domainauth.TokenRecord{Token: validToken, Role: domainauth.RoleManager}))
	rec, ok := tokens.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, validToken, rec.Token)
	assert.Equal(t, domainauth.RoleManager, rec.Role)

	require.NoError(t, tokens.Clear(ctx))
	_, ok = tokens.Get(ctx)
	assert.False(t, ok)
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestTokenStore_SetRejectsEmptyToken(t *testing.T) {
	tokens := NewTokenStore(memstore.New(), nil)
	assert.Error(t, tokens.Set(context.Background(), domainauth.TokenRecord{Token: "  ", Role: domainauth.RoleAdmin}))
}

func TestTokenStore_EmptyTokenIsAbsent(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.SetMany(context.Background(), map[string]string{KeyAccessToken: ""}))

	_, ok := NewTokenStore(store, nil).Get(context.Background())
	assert.False(t, ok)
}

func TestTokenStore_ReadErrorIsAbsent(t *testing.T) {
	store := &failingStorage{Storage: memstore.New(), getErr: errors.New("disk on fire")}
	_, ok := NewTokenStore(store, nil).Get(context.Background())
	assert.False(t, ok)
}

func TestTokenStore_Purge(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.SetMany(ctx, map[string]string{
		KeyAccessToken:  "short",
		KeyUserRole:     "admin",
		KeyUserSettings: "{}",
		"AuthState":     "x",
		"refresh_token": "y",
		KeyDarkMode:     "true",
		"language":      "en",
	}))

	require.NoError(t, NewTokenStore(store, nil).Purge(ctx))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyDarkMode, "language"}, keys)
}

func TestTokenStore_ClearWrapsStorageError(t *testing.T) {
	boom := errors.New("boom")
	tokens := NewTokenStore(&failingStorage{Storage: memstore.New(), deleteErr: boom}, nil)

	err := tokens.Clear(context.Background())
	assert.ErrorIs(t, err, boom)
}
