// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
	"github.com/target/esg-checklist-ui/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthClient     = (*StubAuthClient)(nil)
	_ ports.ResourceClient = (*StubResourceClient)(nil)
)

// StubAuthClient simulates the backend auth endpoints with deterministic tokens.
type StubAuthClient struct {
	LoginFunc       func(ctx context.Context, creds domainauth.Credentials) (domainauth.TokenGrant, error)
	CurrentUserFunc func(ctx context.Context, token string) (domainauth.User, error)
	LogoutFunc      func(ctx context.Context, token string) error

	// Password accepted for every email when LoginFunc is nil.
	Password string
	// DefaultUser is returned for tokens issued by this stub.
	DefaultUser domainauth.User
	// TokenPrefix prefixes issued tokens, which are padded to a plausible length.
	TokenPrefix string

	mu     sync.Mutex
	issued map[string]domainauth.User
	calls  map[string]int
}

// NewStubAuthClient creates a StubAuthClient with sensible defaults.
func NewStubAuthClient() *StubAuthClient {
	return &StubAuthClient{
		Password:    "admin123",
		TokenPrefix: "stub-token",
		DefaultUser: domainauth.User{
			ID:    "1",
			Email: "admin@test.com",
			Role:  domainauth.RoleAdmin,
			Name:  "Test Admin",
		},
	}
}

// Calls returns how many times method was invoked.
func (s *StubAuthClient) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *StubAuthClient) record(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[method]++
	return s.calls[method]
}

func (s *StubAuthClient) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.TokenGrant, error) {
	n := s.record("Login")
	if s.LoginFunc != nil {
		return s.LoginFunc(ctx, creds)
	}
	if creds.Password != s.Password {
		return domainauth.TokenGrant{}, &domainauth.Failure{
			Kind:    domainauth.FailureCredential,
			Message: "Invalid email or password",
			Status:  http.StatusUnauthorized,
		}
	}

	prefix := s.TokenPrefix
	if prefix == "" {
		prefix = "stub-token"
	}
	token := fmt.Sprintf("%s-%d", prefix, n)
	if pad := domainauth.MinTokenLength - len(token); pad > 0 {
		token += strings.Repeat("x", pad)
	}

	user := s.DefaultUser
	user.Email = creds.Email
	s.mu.Lock()
	if s.issued == nil {
		s.issued = map[string]domainauth.User{}
	}
	s.issued[token] = user
	s.mu.Unlock()

	return domainauth.TokenGrant{AccessToken: token, TokenType: "bearer"}, nil
}

func (s *StubAuthClient) CurrentUser(ctx context.Context, token string) (domainauth.User, error) {
	s.record("CurrentUser")
	if s.CurrentUserFunc != nil {
		return s.CurrentUserFunc(ctx, token)
	}
	s.mu.Lock()
	user, ok := s.issued[token]
	s.mu.Unlock()
	if !ok {
		return domainauth.User{}, &domainauth.Failure{
			Kind:    domainauth.FailureCredential,
			Message: "Could not validate credentials",
			Status:  http.StatusUnauthorized,
		}
	}
	return user, nil
}

func (s *StubAuthClient) Logout(ctx context.Context, token string) error {
	s.record("Logout")
	if s.LogoutFunc != nil {
		return s.LogoutFunc(ctx, token)
	}
	s.mu.Lock()
	delete(s.issued, token)
	s.mu.Unlock()
	return nil
}

// StubResourceClient answers GetJSON from a queue of canned responses per path.
// Once a path's queue has a single entry left, that entry repeats.
type StubResourceClient struct {
	mu        sync.Mutex
	responses map[string][]StubResponse
	requests  []string
}

// StubResponse is one canned GetJSON answer.
type StubResponse struct {
	Body any
	Err  error
}

// NewStubResourceClient creates an empty StubResourceClient.
func NewStubResourceClient() *StubResourceClient {
	return &StubResourceClient{responses: map[string][]StubResponse{}}
}

// Queue appends responses for path.
func (s *StubResourceClient) Queue(path string, responses ...StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = append(s.responses[path], responses...)
}

// Requests returns the paths requested so far, in order.
func (s *StubResourceClient) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *StubResourceClient) GetJSON(_ context.Context, path, _ string, out any) error {
	s.mu.Lock()
	s.requests = append(s.requests, path)
	queue := s.responses[path]
	if len(queue) == 0 {
		s.mu.Unlock()
		return &domainauth.Failure{Kind: domainauth.FailureServer, Message: "no stub response for " + path, Status: http.StatusNotFound}
	}
	resp := queue[0]
	if len(queue) > 1 {
		s.responses[path] = queue[1:]
	}
	s.mu.Unlock()

	if resp.Err != nil {
		return resp.Err
	}
	if out == nil || resp.Body == nil {
		return nil
	}
	return roundTrip(resp.Body, out)
}
