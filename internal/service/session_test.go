package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/esg-checklist-ui/internal/adapters/memstore"
	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
	"github.com/target/esg-checklist-ui/internal/mocks"
	mockauth "github.com/target/esg-checklist-ui/internal/mocks/auth"
	"github.com/target/esg-checklist-ui/internal/ports"
	"go.uber.org/mock/gomock"
)

var adminUser = domainauth.User{ID: "1", Email: "admin@test.com", Role: domainauth.RoleAdmin}

// validToken is longer than the plausibility minimum and is not a JWT.
const validToken = "abcdefghijklmnopqrstuvwxyz0123456789==="

func newTestSession(t *testing.T, client ports.AuthClient) (*SessionController, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	sc, err := NewSessionController(SessionControllerOptions{
		Client:             client,
		Tokens:             NewTokenStore(store, nil),
		IdentityRetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(sc.Wait)
	return sc, store
}

func seedToken(t *testing.T, store *memstore.Store, token string, role domainauth.Role) {
	t.Helper()
	require.NoError(t, store.SetMany(context.Background(), map[string]string{
		KeyAccessToken: token,
		KeyUserRole:    string(role),
	}))
}

func storedToken(t *testing.T, store *memstore.Store) (string, bool) {
	t.Helper()
	v, ok, err := store.Get(context.Background(), KeyAccessToken)
	require.NoError(t, err)
	return v, ok
}

func unauthorized(msg string) error {
	return &domainauth.Failure{Kind: domainauth.FailureCredential, Message: msg, Status: http.StatusUnauthorized}
}

func TestNewSessionController_Validation(t *testing.T) {
	_, err := NewSessionController(SessionControllerOptions{})
	assert.Error(t, err)

	_, err = NewSessionController(SessionControllerOptions{Client: mockauth.NewStubAuthClient()})
	assert.Error(t, err)
}

func TestSessionController_InitialStateIsLoading(t *testing.T) {
	sc, _ := newTestSession(t, mockauth.NewStubAuthClient())

	state := sc.State(context.Background())
	assert.True(t, state.IsLoading)
	assert.False(t, state.IsAuthenticated)
	assert.Nil(t, state.User)
}

func TestSessionController_Start_NoToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	// No expectations: any backend call fails the test.
	client := mocks.NewMockAuthClient(ctrl)
	sc, _ := newTestSession(t, client)

	sc.Start(context.Background())

	state := sc.State(context.Background())
	assert.False(t, state.IsLoading)
	assert.False(t, state.IsAuthenticated)
	assert.Nil(t, state.User)
	assert.Empty(t, state.Error)

	select {
	case <-sc.Ready():
	default:
		t.Fatal("Ready should be closed after Start")
	}
}

func TestSessionController_Start_ValidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	client.EXPECT().CurrentUser(gomock.Any(), validToken).Return(adminUser, nil).Times(1)

	sc, store := newTestSession(t, client)
	seedToken(t, store, validToken, domainauth.RoleUser)

	sc.Start(context.Background())
	// A second Start is a no-op.
	sc.Start(context.Background())

	state := sc.State(context.Background())
	assert.False(t, state.IsLoading)
	assert.True(t, state.IsAuthenticated)
	require.NotNil(t, state.User)
	assert.Equal(t, "admin@test.com", state.User.Email)

	// The cached role is refreshed from the identity record.
	role, _, err := store.Get(context.Background(), KeyUserRole)
	require.NoError(t, err)
	assert.Equal(t, "admin", role)
}

func TestSessionController_Start_ImplausibleTokenPurgedWithoutNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	sc, store := newTestSession(t, client)

	ctx := context.Background()
	seedToken(t, store, "short", domainauth.RoleAdmin)
	require.NoError(t, store.SetMany(ctx, map[string]string{"auth_state": "x", KeyDarkMode: "true"}))

	sc.Start(ctx)

	_, ok := storedToken(t, store)
	assert.False(t, ok)
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyDarkMode}, keys)
	assert.False(t, sc.State(ctx).IsAuthenticated)
}

func TestSessionController_Start_ExpiredToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	token := strings.Repeat("e", 40)
	client.EXPECT().CurrentUser(gomock.Any(), token).Return(domainauth.User{}, unauthorized("Could not validate credentials")).Times(1)

	sc, store := newTestSession(t, client)
	seedToken(t, store, token, domainauth.RoleAdmin)

	sc.Start(context.Background())

	_, ok := storedToken(t, store)
	assert.False(t, ok)
	state := sc.State(context.Background())
	assert.False(t, state.IsAuthenticated)
	assert.False(t, state.IsLoading)
	// Startup failures are silent.
	assert.Empty(t, state.Error)
}

func TestSessionController_Start_ExpiredJWTNeedsNoRoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	sc, store := newTestSession(t, client)

	claims := jwt.MapClaims{"sub": "1", "exp": time.Now().Add(-time.Hour).Unix()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	seedToken(t, store, signed, domainauth.RoleAdmin)

	sc.Start(context.Background())

	_, ok := storedToken(t, store)
	assert.False(t, ok)
}

func TestSessionController_Start_RetriesTransientIdentityFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	transient := domainauth.NewFailure(domainauth.FailureServer, "temporarily unavailable", nil)
	gomock.InOrder(
		client.EXPECT().CurrentUser(gomock.Any(), validToken).Return(domainauth.User{}, transient),
		client.EXPECT().CurrentUser(gomock.Any(), validToken).Return(domainauth.User{}, transient),
		client.EXPECT().CurrentUser(gomock.Any(), validToken).Return(adminUser, nil),
	)

	sc, store := newTestSession(t, client)
	seedToken(t, store, validToken, domainauth.RoleAdmin)

	sc.Start(context.Background())
	assert.True(t, sc.State(context.Background()).IsAuthenticated)
}

func TestSessionController_Start_GivesUpAfterThreeAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	client.EXPECT().CurrentUser(gomock.Any(), validToken).
		Return(domainauth.User{}, errors.New("connection refused")).Times(3)

	sc, store := newTestSession(t, client)
	seedToken(t, store, validToken, domainauth.RoleAdmin)

	sc.Start(context.Background())

	_, ok := storedToken(t, store)
	assert.False(t, ok)
	assert.False(t, sc.State(context.Background()).IsAuthenticated)
}

func TestSessionController_Start_IncompleteIdentityPurges(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	client.EXPECT().CurrentUser(gomock.Any(), validToken).
		Return(domainauth.User{ID: "1", Email: "admin@test.com"}, nil).Times(1)

	sc, store := newTestSession(t, client)
	seedToken(t, store, validToken, domainauth.RoleAdmin)

	sc.Start(context.Background())

	_, ok := storedToken(t, store)
	assert.False(t, ok)
}

func TestSessionController_Login_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	creds := domainauth.Credentials{Email: "admin@test.com", Password: "admin123"}
	gomock.InOrder(
		client.EXPECT().Login(gomock.Any(), creds).Return(domainauth.TokenGrant{AccessToken: validToken, TokenType: "bearer"}, nil),
		client.EXPECT().CurrentUser(gomock.Any(), validToken).Return(adminUser, nil),
	)

	sc, store := newTestSession(t, client)
	ctx := context.Background()
	sc.Start(ctx)

	require.NoError(t, sc.Login(ctx, "admin@test.com", "admin123"))

	state := sc.State(ctx)
	assert.True(t, state.IsAuthenticated)
	assert.False(t, state.IsLoading)
	assert.Empty(t, state.Error)
	token, ok := storedToken(t, store)
	assert.True(t, ok)
	assert.Equal(t, validToken, token)
	role, _, err := store.Get(ctx, KeyUserRole)
	require.NoError(t, err)
	assert.Equal(t, "admin", role)
	assert.Equal(t, validToken, sc.BearerToken(ctx))
}

func TestSessionController_Login_StoresTokenBeforeIdentityFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)

	sc, store := newTestSession(t, client)
	ctx := context.Background()
	sc.Start(ctx)

	client.EXPECT().Login(gomock.Any(), gomock.Any()).
		Return(domainauth.TokenGrant{AccessToken: validToken, TokenType: "bearer"}, nil)
	client.EXPECT().CurrentUser(gomock.Any(), validToken).
		DoAndReturn(func(context.Context, string) (domainauth.User, error) {
			token, ok := storedToken(t, store)
			assert.True(t, ok)
			assert.Equal(t, validToken, token)
			state := sc.State(ctx)
			assert.False(t, state.IsAuthenticated)
			assert.True(t, state.IsLoading)
			return adminUser, nil
		})

	require.NoError(t, sc.Login(ctx, "admin@test.com", "admin123"))
	assert.True(t, sc.State(ctx).IsAuthenticated)
}

func TestSessionController_Login_Unauthorized(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	client.EXPECT().Login(gomock.Any(), gomock.Any()).
		Return(domainauth.TokenGrant{}, unauthorized("Invalid email or password"))

	sc, store := newTestSession(t, client)
	ctx := context.Background()
	// A stale credential from an earlier session must not survive the attempt.
	seedToken(t, store, "stale-token-from-an-earlier-login", domainauth.RoleUser)

	err := sc.Login(ctx, "admin@test.com", "wrong")
	require.Error(t, err)
	var f *domainauth.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, domainauth.FailureCredential, f.Kind)

	state := sc.State(ctx)
	assert.Equal(t, "Invalid email or password", state.Error)
	assert.False(t, state.IsAuthenticated)
	assert.False(t, state.IsLoading)
	_, ok := storedToken(t, store)
	assert.False(t, ok)
}

func TestSessionController_Login_NetworkFailureUsesGenericMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	client.EXPECT().Login(gomock.Any(), gomock.Any()).
		Return(domainauth.TokenGrant{}, errors.New("dial tcp: connection refused"))

	sc, _ := newTestSession(t, client)

	err := sc.Login(context.Background(), "admin@test.com", "admin123")
	require.Error(t, err)
	assert.Equal(t, domainauth.MsgNetworkFailure, sc.State(context.Background()).Error)
}

func TestSessionController_Login_MalformedIdentityLeavesNoToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	client.EXPECT().Login(gomock.Any(), gomock.Any()).
		Return(domainauth.TokenGrant{AccessToken: validToken}, nil)
	client.EXPECT().CurrentUser(gomock.Any(), validToken).
		Return(domainauth.User{ID: "1", Email: "admin@test.com"}, nil).Times(1)

	sc, store := newTestSession(t, client)

	err := sc.Login(context.Background(), "admin@test.com", "admin123")
	f := domainauth.AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, domainauth.FailureValidation, f.Kind)
	assert.Equal(t, domainauth.MsgInvalidIdentity, sc.State(context.Background()).Error)
	_, ok := storedToken(t, store)
	assert.False(t, ok)
}

func TestSessionController_Login_RequiresCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	sc, _ := newTestSession(t, client)

	err := sc.Login(context.Background(), "  ", "admin123")
	require.Error(t, err)
	assert.NotEmpty(t, sc.State(context.Background()).Error)

	err = sc.Login(context.Background(), "admin@test.com", "")
	require.Error(t, err)
}

func TestSessionController_Logout_Idempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	client.EXPECT().Login(gomock.Any(), gomock.Any()).Return(domainauth.TokenGrant{AccessToken: validToken}, nil)
	client.EXPECT().CurrentUser(gomock.Any(), validToken).Return(adminUser, nil)
	// Only the first logout has a token to revoke.
	client.EXPECT().Logout(gomock.Any(), validToken).Return(nil).Times(1)

	sc, store := newTestSession(t, client)
	ctx := context.Background()
	require.NoError(t, sc.Login(ctx, "admin@test.com", "admin123"))

	sc.Logout(ctx)
	sc.Wait()
	once := sc.State(ctx)

	sc.Logout(ctx)
	sc.Wait()
	twice := sc.State(ctx)

	assert.Equal(t, once, twice)
	assert.False(t, twice.IsAuthenticated)
	assert.Nil(t, twice.User)
	assert.Empty(t, twice.Error)
	_, ok := storedToken(t, store)
	assert.False(t, ok)
}

func TestSessionController_Logout_ServerFailureStillClearsLocally(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	client.EXPECT().CurrentUser(gomock.Any(), validToken).Return(adminUser, nil)
	client.EXPECT().Logout(gomock.Any(), validToken).Return(errors.New("network down"))

	sc, store := newTestSession(t, client)
	seedToken(t, store, validToken, domainauth.RoleAdmin)
	ctx := context.Background()
	sc.Start(ctx)
	require.True(t, sc.State(ctx).IsAuthenticated)

	sc.Logout(ctx)
	// Local state is cleared before the server call completes.
	assert.False(t, sc.State(ctx).IsAuthenticated)
	sc.Wait()

	_, ok := storedToken(t, store)
	assert.False(t, ok)
}

func TestSessionController_Logout_PublishesRedirect(t *testing.T) {
	sc, _ := newTestSession(t, mockauth.NewStubAuthClient())
	ctx := context.Background()
	sc.Start(ctx)

	updates, cancel := sc.Subscribe()
	defer cancel()

	sc.Logout(ctx)

	select {
	case s := <-updates:
		assert.Equal(t, "/login", s.Redirect)
		assert.False(t, s.IsAuthenticated)
	case <-time.After(time.Second):
		t.Fatal("no session update after logout")
	}
}

func TestSessionController_RecheckToken_ShortTokenPurged(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockAuthClient(ctrl)
	client.EXPECT().CurrentUser(gomock.Any(), validToken).Return(adminUser, nil).Times(1)

	sc, store := newTestSession(t, client)
	ctx := context.Background()
	seedToken(t, store, validToken, domainauth.RoleAdmin)
	sc.Start(ctx)
	require.True(t, sc.State(ctx).IsAuthenticated)

	// Storage is corrupted underneath a session with a cached user.
	seedToken(t, store, "tooshort", domainauth.RoleAdmin)
	require.NoError(t, store.SetMany(ctx, map[string]string{"user_settings": "{}"}))

	sc.RecheckToken(ctx)

	state := sc.State(ctx)
	assert.False(t, state.IsAuthenticated)
	assert.Nil(t, state.User)
	_, ok := storedToken(t, store)
	assert.False(t, ok)
	_, ok, err := store.Get(ctx, KeyUserSettings)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionController_RecheckToken_PlausibleTokenKept(t *testing.T) {
	client := mockauth.NewStubAuthClient()
	sc, store := newTestSession(t, client)
	ctx := context.Background()
	sc.Start(ctx)
	require.NoError(t, sc.Login(ctx, "admin@test.com", "admin123"))

	sc.RecheckToken(ctx)

	assert.True(t, sc.State(ctx).IsAuthenticated)
	_, ok := storedToken(t, store)
	assert.True(t, ok)
	assert.Equal(t, 0, client.Calls("Logout"))
}

func TestSessionController_AuthenticatedRequiresStoredToken(t *testing.T) {
	sc, store := newTestSession(t, mockauth.NewStubAuthClient())
	ctx := context.Background()
	sc.Start(ctx)
	require.NoError(t, sc.Login(ctx, "admin@test.com", "admin123"))

	require.NoError(t, store.Delete(ctx, KeyAccessToken))

	state := sc.State(ctx)
	assert.False(t, state.IsAuthenticated)
	// The user record lingers until the monitor invalidates it.
	assert.NotNil(t, state.User)
}

func TestSessionController_InvalidateIgnoredWhileTokenStored(t *testing.T) {
	sc, store := newTestSession(t, mockauth.NewStubAuthClient())
	ctx := context.Background()
	sc.Start(ctx)
	require.NoError(t, sc.Login(ctx, "admin@test.com", "admin123"))

	sc.Invalidate(ctx, "stale removal")
	assert.True(t, sc.State(ctx).IsAuthenticated)

	require.NoError(t, store.Delete(ctx, KeyAccessToken, KeyUserRole))
	sc.Invalidate(ctx, "token removed")
	s := sc.State(ctx)
	assert.False(t, s.IsAuthenticated)
	assert.Nil(t, s.User)
}

func TestSessionController_SubscribeCancel(t *testing.T) {
	sc, _ := newTestSession(t, mockauth.NewStubAuthClient())

	updates, cancel := sc.Subscribe()
	cancel()
	cancel()

	_, open := <-updates
	assert.False(t, open)
	// Publishing after cancel must not panic.
	sc.Start(context.Background())
}
