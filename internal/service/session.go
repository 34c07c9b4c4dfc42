package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
	"github.com/target/esg-checklist-ui/internal/ports"
)

const (
	defaultIdentityAttempts   = 3
	defaultIdentityRetryDelay = 500 * time.Millisecond
	defaultLogoutTimeout      = 5 * time.Second
	defaultLoginPath          = "/login"

	msgSaveSession = "Unable to save your session. Please try again."
)

// SessionControllerOptions groups dependencies for SessionController.
type SessionControllerOptions struct {
	Client ports.AuthClient
	Tokens *TokenStore
	Logger *slog.Logger

	// IdentityAttempts bounds current-user fetch attempts per login or startup (default 3).
	IdentityAttempts int
	// IdentityRetryDelay is the fixed delay between identity attempts (default 500ms).
	IdentityRetryDelay time.Duration
	// LogoutTimeout bounds the background server-side logout call (default 5s).
	LogoutTimeout time.Duration
	// LoginPath is announced as the redirect target after logout (default /login).
	LoginPath string

	Now func() time.Time
}

// SessionController owns the in-memory session. All mutation goes through it;
// other components read snapshots via State or Subscribe.
type SessionController struct {
	client ports.AuthClient
	tokens *TokenStore
	logger *slog.Logger

	identityAttempts int
	identityDelay    time.Duration
	logoutTimeout    time.Duration
	loginPath        string
	now              func() time.Time

	// opMu serializes startup validation, login, logout and reconciliation.
	opMu sync.Mutex

	mu      sync.RWMutex
	user    *domainauth.User
	loading bool
	errMsg  string

	startOnce sync.Once
	ready     chan struct{}

	subsMu sync.Mutex
	subs   map[chan domainauth.Session]struct{}

	background sync.WaitGroup
}

// NewSessionController constructs a SessionController. The session starts
// empty and loading until Start completes.
func NewSessionController(opts SessionControllerOptions) (*SessionController, error) {
	if opts.Client == nil {
		return nil, errors.New("auth client is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token store is required")
	}
	c := &SessionController{
		client:           opts.Client,
		tokens:           opts.Tokens,
		logger:           opts.Logger,
		identityAttempts: opts.IdentityAttempts,
		identityDelay:    opts.IdentityRetryDelay,
		logoutTimeout:    opts.LogoutTimeout,
		loginPath:        opts.LoginPath,
		now:              opts.Now,
		loading:          true,
		ready:            make(chan struct{}),
		subs:             make(map[chan domainauth.Session]struct{}),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.identityAttempts <= 0 {
		c.identityAttempts = defaultIdentityAttempts
	}
	if c.identityDelay <= 0 {
		c.identityDelay = defaultIdentityRetryDelay
	}
	if c.logoutTimeout <= 0 {
		c.logoutTimeout = defaultLogoutTimeout
	}
	if c.loginPath == "" {
		c.loginPath = defaultLoginPath
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// State returns a snapshot of the session with IsAuthenticated derived from
// the token store and the in-memory user.
func (c *SessionController) State(ctx context.Context) domainauth.Session {
	c.mu.RLock()
	var user *domainauth.User
	if c.user != nil {
		u := *c.user
		user = &u
	}
	s := domainauth.Session{User: user, IsLoading: c.loading, Error: c.errMsg}
	c.mu.RUnlock()

	if rec, ok := c.tokens.Get(ctx); ok {
		s.IsAuthenticated = domainauth.Authenticated(rec.Token, user)
	}
	return s
}

// BearerToken returns the stored token, or "" when none is stored.
func (c *SessionController) BearerToken(ctx context.Context) string {
	rec, ok := c.tokens.Get(ctx)
	if !ok {
		return ""
	}
	return rec.Token
}

// Ready is closed once startup validation has finished.
func (c *SessionController) Ready() <-chan struct{} { return c.ready }

// Start runs startup validation once. Concurrent and later callers return
// after the first validation has completed.
func (c *SessionController) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		defer close(c.ready)
		c.opMu.Lock()
		defer c.opMu.Unlock()
		c.validateStoredToken(ctx)
	})
}

func (c *SessionController) validateStoredToken(ctx context.Context) {
	rec, ok := c.tokens.Get(ctx)
	if !ok {
		c.logger.DebugContext(ctx, "session startup: no stored token")
		c.settle(nil, "")
		return
	}

	if !domainauth.IsPlausibleToken(rec.Token, c.now()) {
		c.logger.DebugContext(ctx, "session startup: purging implausible token")
		if err := c.tokens.Purge(ctx); err != nil {
			c.logger.WarnContext(ctx, "purge implausible token failed", "error", err)
		}
		c.settle(nil, "")
		return
	}

	user, err := c.fetchIdentity(ctx, rec.Token)
	if err != nil {
		c.logger.DebugContext(ctx, "session startup: stored token rejected", "error", err)
		if cerr := c.tokens.Clear(ctx); cerr != nil {
			c.logger.WarnContext(ctx, "clear rejected token failed", "error", cerr)
		}
		c.settle(nil, "")
		return
	}

	if rec.Role != user.Role {
		if serr := c.tokens.Set(ctx, domainauth.TokenRecord{Token: rec.Token, Role: user.Role}); serr != nil {
			c.logger.WarnContext(ctx, "refresh cached role failed", "error", serr)
		}
	}
	c.logger.DebugContext(ctx, "session startup: token validated", "user_id", user.ID, "role", user.Role)
	c.settle(&user, "")
}

// Login clears any existing credential, authenticates against the backend,
// stores the token, fetches the identity and then records the role alongside
// the token. On failure the
// session is cleared, Error is set and a *domainauth.Failure is returned.
func (c *SessionController) Login(ctx context.Context, email, password string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return c.failLogin(ctx, domainauth.NewFailure(domainauth.FailureValidation, "Email and password are required.", nil))
	}

	c.mu.Lock()
	c.user = nil
	c.loading = true
	c.errMsg = ""
	c.mu.Unlock()
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.WarnContext(ctx, "clear previous token before login failed", "error", err)
	}
	c.publish(ctx, "")
	c.logger.DebugContext(ctx, "session login: started", "email", email)

	grant, err := c.client.Login(ctx, domainauth.Credentials{Email: email, Password: password})
	if err != nil {
		return c.failLogin(ctx, err)
	}

	// The token is stored before the identity fetch; user stays nil until
	// the fetch succeeds, so the session is not authenticated in between.
	if err = c.tokens.Set(ctx, domainauth.TokenRecord{Token: grant.AccessToken}); err != nil {
		return c.failLogin(ctx, domainauth.NewFailure(domainauth.FailureServer, msgSaveSession, err))
	}

	user, err := c.fetchIdentity(ctx, grant.AccessToken)
	if err != nil {
		return c.failLogin(ctx, err)
	}

	if err = c.tokens.Set(ctx, domainauth.TokenRecord{Token: grant.AccessToken, Role: user.Role}); err != nil {
		return c.failLogin(ctx, domainauth.NewFailure(domainauth.FailureServer, msgSaveSession, err))
	}

	c.logger.DebugContext(ctx, "session login: authenticated", "user_id", user.ID, "role", user.Role)
	c.settle(&user, "")
	return nil
}

// Logout clears the stored credential and the in-memory session, then asks the
// backend to invalidate the token in the background. Local clearing never
// depends on the outcome of the server call.
func (c *SessionController) Logout(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	rec, hadToken := c.tokens.Get(ctx)
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.WarnContext(ctx, "clear token on logout failed", "error", err)
	}

	c.mu.Lock()
	c.user = nil
	c.loading = false
	c.errMsg = ""
	c.mu.Unlock()
	c.publish(ctx, c.loginPath)
	c.logger.DebugContext(ctx, "session logout: local state cleared")

	if !hadToken {
		return
	}
	c.background.Add(1)
	go func(token string) {
		defer c.background.Done()
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.logoutTimeout)
		defer cancel()
		if err := c.client.Logout(lctx, token); err != nil {
			c.logger.DebugContext(lctx, "server logout failed", "error", err)
		}
	}(rec.Token)
}

// Invalidate drops the in-memory user when storage no longer holds a
// credential. Removal events can arrive after a login in this process has
// already stored a new token; those are ignored.
func (c *SessionController) Invalidate(ctx context.Context, reason string) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if _, ok := c.tokens.Get(ctx); ok {
		c.logger.DebugContext(ctx, "session invalidation skipped: token still stored", "reason", reason)
		return
	}
	c.dropUser(ctx, reason)
}

// RecheckToken re-runs the local plausibility check against storage and clears
// the session when it fails. It makes no network calls.
func (c *SessionController) RecheckToken(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	rec, ok := c.tokens.Get(ctx)
	if !ok {
		c.dropUser(ctx, "token missing")
		return
	}
	if domainauth.IsPlausibleToken(rec.Token, c.now()) {
		return
	}
	if err := c.tokens.Purge(ctx); err != nil {
		c.logger.WarnContext(ctx, "purge implausible token failed", "error", err)
	}
	c.dropUser(ctx, "token implausible")
}

func (c *SessionController) dropUser(ctx context.Context, reason string) {
	c.mu.Lock()
	had := c.user != nil
	c.user = nil
	c.mu.Unlock()
	if !had {
		return
	}
	c.logger.DebugContext(ctx, "session invalidated", "reason", reason)
	c.publish(ctx, "")
}

// Subscribe returns a channel receiving the latest session snapshot after each
// change, and a function that cancels the subscription. Slow subscribers only
// see the most recent snapshot.
func (c *SessionController) Subscribe() (<-chan domainauth.Session, func()) {
	ch := make(chan domainauth.Session, 1)
	c.subsMu.Lock()
	c.subs[ch] = struct{}{}
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, ch)
			close(ch)
			c.subsMu.Unlock()
		})
	}
}

// Wait blocks until background server calls started by Logout have finished.
func (c *SessionController) Wait() { c.background.Wait() }

// fetchIdentity calls the current-user endpoint, retrying transient failures
// with a fixed delay. Credential and validation failures are not retried.
func (c *SessionController) fetchIdentity(ctx context.Context, token string) (domainauth.User, error) {
	attempt := 0
	op := func() (domainauth.User, error) {
		attempt++
		user, err := c.client.CurrentUser(ctx, token)
		if err == nil {
			if !user.Complete() {
				return domainauth.User{}, backoff.Permanent(
					domainauth.NewFailure(domainauth.FailureValidation, domainauth.MsgInvalidIdentity, nil))
			}
			return user, nil
		}
		if !domainauth.AsFailure(err).Retryable() {
			return domainauth.User{}, backoff.Permanent(err)
		}
		c.logger.DebugContext(ctx, "identity fetch failed", "attempt", attempt, "error", err)
		return domainauth.User{}, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.identityDelay)),
		backoff.WithMaxTries(uint(c.identityAttempts)),
	)
}

// failLogin clears all credential state, records the user-facing message and
// returns the normalized failure.
func (c *SessionController) failLogin(ctx context.Context, err error) error {
	f := domainauth.AsFailure(err)
	msg := loginMessage(f)

	if cerr := c.tokens.Clear(ctx); cerr != nil {
		c.logger.WarnContext(ctx, "clear token after failed login failed", "error", cerr)
	}
	c.logger.DebugContext(ctx, "session login: failed", "kind", f.Kind, "status", f.Status)
	c.settle(nil, msg)

	return &domainauth.Failure{Kind: f.Kind, Message: msg, Status: f.Status, Cause: f.Cause}
}

func loginMessage(f *domainauth.Failure) string {
	switch {
	case f.Kind == domainauth.FailureNetwork:
		return domainauth.MsgNetworkFailure
	case strings.TrimSpace(f.Message) != "":
		return f.Message
	default:
		return domainauth.MsgLoginFailed
	}
}

// settle publishes the end of a transition: user and loading flip together.
func (c *SessionController) settle(user *domainauth.User, errMsg string) {
	c.mu.Lock()
	c.user = user
	c.loading = false
	c.errMsg = errMsg
	c.mu.Unlock()
	c.publish(context.Background(), "")
}

func (c *SessionController) publish(ctx context.Context, redirect string) {
	s := c.State(ctx)
	s.Redirect = redirect

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- s:
		default:
			// Replace the stale snapshot with the latest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
