package ports

// Package ports defines interfaces (hexagonal ports) for session-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
)

// AuthClient issues login, logout and current-user calls to the backend.
type AuthClient interface {
	// Login exchanges credentials for a bearer token.
	Login(ctx context.Context, creds domainauth.Credentials) (domainauth.TokenGrant, error)

	// CurrentUser returns the identity the token belongs to.
	CurrentUser(ctx context.Context, token string) (domainauth.User, error)

	// Logout invalidates the token server-side. Best effort.
	Logout(ctx context.Context, token string) error
}

// ResourceClient issues authenticated read-only requests against backend resources.
type ResourceClient interface {
	GetJSON(ctx context.Context, path, token string, out any) error
}

// StorageEvent describes a change to a storage key.
type StorageEvent struct {
	Key     string
	Removed bool
}

// Storage is a string key/value store shared between console processes,
// playing the role of persistent browser storage.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// SetMany writes all pairs or none.
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)
	// Watch streams change notifications until ctx is done.
	Watch(ctx context.Context) (<-chan StorageEvent, error)
}
