package auth

// Package auth contains domain-level types for the client session lifecycle.
// It is pure and free of framework/adapter concerns.

import "strings"

// Role represents an application's authorization role as reported by the backend.
// Keep string form for easy persistence in storage.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// User is the identity record returned by the backend's current-user endpoint.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name,omitempty"`
}

// HasIdentity reports whether the record carries the minimum identity
// needed to count as authenticated (non-empty id and email).
func (u *User) HasIdentity() bool {
	return u != nil && strings.TrimSpace(u.ID) != "" && strings.TrimSpace(u.Email) != ""
}

// Complete reports whether the record carries every field the client
// requires from the backend (id, email and role).
func (u *User) Complete() bool {
	return u.HasIdentity() && strings.TrimSpace(string(u.Role)) != ""
}

// DisplayName returns the name, falling back to the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Credentials carries the login form input.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenGrant is the backend's successful login response.
type TokenGrant struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// TokenRecord is the durable credential: the bearer token plus a cached copy
// of the user's role. Both fields are always written or removed together.
type TokenRecord struct {
	Token string
	Role  Role
}

// Session is the client's belief about the current user.
// IsAuthenticated is derived by the session controller and never stored.
type Session struct {
	User            *User  `json:"user,omitempty"`
	IsAuthenticated bool   `json:"authenticated"`
	IsLoading       bool   `json:"loading"`
	Error           string `json:"error,omitempty"`
	// Redirect is set on the notification emitted by a logout so that open
	// views can navigate to the login screen.
	Redirect string `json:"redirect,omitempty"`
}

// Authenticated derives IsAuthenticated from token presence and the user record.
func Authenticated(token string, user *User) bool {
	return strings.TrimSpace(token) != "" && user.HasIdentity()
}
