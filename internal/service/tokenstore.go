package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
	"github.com/target/esg-checklist-ui/internal/ports"
)

// Storage keys persisted by the console.
const (
	KeyAccessToken  = "access_token"
	KeyUserRole     = "user_role"
	KeyDarkMode     = "dark_mode"
	KeyUserSettings = "user_settings"
)

// TokenStore reads and writes the persisted credential. Token and role are
// always written or removed together.
type TokenStore struct {
	storage ports.Storage
	logger  *slog.Logger
}

// NewTokenStore constructs a TokenStore over storage.
func NewTokenStore(storage ports.Storage, logger *slog.Logger) *TokenStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenStore{storage: storage, logger: logger}
}

// TokenKey returns the storage key holding the bearer token.
func (s *TokenStore) TokenKey() string { return KeyAccessToken }

// Get returns the stored record. An empty token is absent; a read failure is
// logged and treated as absent.
func (s *TokenStore) Get(ctx context.Context) (domainauth.TokenRecord, bool) {
	token, ok, err := s.storage.Get(ctx, KeyAccessToken)
	if err != nil {
		s.logger.WarnContext(ctx, "read token failed", "error", err)
		return domainauth.TokenRecord{}, false
	}
	if !ok || strings.TrimSpace(token) == "" {
		return domainauth.TokenRecord{}, false
	}
	role, _, err := s.storage.Get(ctx, KeyUserRole)
	if err != nil {
		s.logger.WarnContext(ctx, "read cached role failed", "error", err)
	}
	return domainauth.TokenRecord{Token: token, Role: domainauth.Role(role)}, true
}

// Set writes the token and role together.
func (s *TokenStore) Set(ctx context.Context, rec domainauth.TokenRecord) error {
	if strings.TrimSpace(rec.Token) == "" {
		return errors.New("token cannot be empty")
	}
	if err := s.storage.SetMany(ctx, map[string]string{
		KeyAccessToken: rec.Token,
		KeyUserRole:    string(rec.Role),
	}); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Clear removes the token and role together.
func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.storage.Delete(ctx, KeyAccessToken, KeyUserRole); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// Purge removes the credential and every key that looks credential-related
// (name containing "auth", "token" or "user"). Used when the stored record is corrupt.
func (s *TokenStore) Purge(ctx context.Context) error {
	doomed := []string{KeyAccessToken, KeyUserRole}
	keys, err := s.storage.Keys(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "list storage keys for purge failed", "error", err)
	}
	for _, k := range keys {
		if isCredentialKey(k) {
			doomed = append(doomed, k)
		}
	}
	if err = s.storage.Delete(ctx, doomed...); err != nil {
		return fmt.Errorf("purge credentials: %w", err)
	}
	return nil
}

func isCredentialKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "auth") || strings.Contains(k, "token") || strings.Contains(k, "user")
}
