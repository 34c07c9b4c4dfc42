package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
)

// FakeAccount is a login the fake backend accepts.
type FakeAccount struct {
	Password string
	User     domainauth.User
}

// FakeBackend is an in-process stand-in for the ESG Checklist REST API.
type FakeBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	accounts map[string]FakeAccount
	tokens   map[string]domainauth.User
	uploads  map[string][]map[string]any
	calls    map[string]int

	// IssuedToken, when set, is returned by every successful login.
	IssuedToken string
	// MeFailures makes the next N current-user calls answer 503.
	MeFailures int
	// LoginStatus, when non-zero, forces the login endpoint's status code.
	LoginStatus int
}

// NewFakeBackend starts a fake backend that is closed with the test.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{
		accounts: map[string]FakeAccount{},
		tokens:   map[string]domainauth.User{},
		uploads:  map[string][]map[string]any{},
		calls:    map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", fb.login)
	mux.HandleFunc("GET /api/auth/me", fb.me)
	mux.HandleFunc("POST /api/auth/logout", fb.logout)
	mux.HandleFunc("GET /api/uploads/{id}", fb.upload)
	mux.HandleFunc("GET /api/uploads", fb.list)
	mux.HandleFunc("GET /api/notifications", fb.list)

	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Server.Close)
	return fb
}

// URL returns the backend base URL.
func (fb *FakeBackend) URL() string { return fb.Server.URL }

// AddAccount registers a login.
func (fb *FakeBackend) AddAccount(email, password string, user domainauth.User) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.accounts[email] = FakeAccount{Password: password, User: user}
}

// AddToken makes token valid for user, as if issued by an earlier login.
func (fb *FakeBackend) AddToken(token string, user domainauth.User) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.tokens[token] = user
}

// SetUploadSequence sets the successive responses for GET /api/uploads/{id}.
// Once exhausted, the last response repeats.
func (fb *FakeBackend) SetUploadSequence(id string, responses ...map[string]any) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.uploads[id] = responses
}

// Calls returns the number of requests served for a route key such as "GET /api/auth/me".
func (fb *FakeBackend) Calls(route string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[route]
}

func (fb *FakeBackend) count(r *http.Request) {
	key := r.Method + " " + r.URL.Path
	if r.Pattern != "" {
		key = r.Pattern
	}
	fb.calls[key]++
}

func (fb *FakeBackend) login(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.count(r)

	if fb.LoginStatus != 0 {
		writeJSON(w, fb.LoginStatus, map[string]string{"message": http.StatusText(fb.LoginStatus)})
		return
	}

	var creds domainauth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid request body"})
		return
	}
	acct, ok := fb.accounts[creds.Email]
	if !ok || acct.Password != creds.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid email or password"})
		return
	}

	token := fb.IssuedToken
	if token == "" {
		token = "esg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	fb.tokens[token] = acct.User
	writeJSON(w, http.StatusOK, domainauth.TokenGrant{AccessToken: token, TokenType: "bearer"})
}

func (fb *FakeBackend) me(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.count(r)

	if fb.MeFailures > 0 {
		fb.MeFailures--
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "temporarily unavailable"})
		return
	}
	user, ok := fb.tokens[bearer(r)]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (fb *FakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.count(r)
	delete(fb.tokens, bearer(r))
	w.WriteHeader(http.StatusNoContent)
}

func (fb *FakeBackend) upload(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.count(r)

	if _, ok := fb.tokens[bearer(r)]; !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
		return
	}
	seq := fb.uploads[r.PathValue("id")]
	if len(seq) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Upload not found"})
		return
	}
	resp := seq[0]
	if len(seq) > 1 {
		fb.uploads[r.PathValue("id")] = seq[1:]
	}
	writeJSON(w, http.StatusOK, resp)
}

func (fb *FakeBackend) list(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.count(r)

	if _, ok := fb.tokens[bearer(r)]; !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": []map[string]any{{"id": 1}, {"id": 2}}})
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
