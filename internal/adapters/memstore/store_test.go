package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/target/esg-checklist-ui/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.SetMany(ctx, map[string]string{"access_token": "tok", "user_role": "admin"}))

	v, ok, err := s.Get(ctx, "access_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"access_token", "user_role"}, keys)

	require.NoError(t, s.Delete(ctx, "access_token", "missing"))
	_, ok, err = s.Get(ctx, "access_token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Watch(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, s.SetMany(ctx, map[string]string{"dark_mode": "true"}))
	require.NoError(t, s.Delete(ctx, "dark_mode"))

	assert.Equal(t, ports.StorageEvent{Key: "dark_mode"}, <-events)
	assert.Equal(t, ports.StorageEvent{Key: "dark_mode", Removed: true}, <-events)

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, time.Second, 10*time.Millisecond)
}
