package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meetscribe/minutes-front/internal/apiclient"
	"github.com/meetscribe/minutes-front/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "test-signing-key-must-be-32-bytes-long"

func newTestManager(t *testing.T, handler http.Handler) (*Manager, *storage.MemoryStore) {
	t.Helper()
	backend := httptest.NewServer(handler)
	t.Cleanup(backend.Close)

	store := storage.NewMemoryStore(time.Hour)
	api := apiclient.New(backend.URL, 5*time.Second, store)
	return NewManager(api, store, "https://minutes.example.com", []byte(testSigningKey)), store
}

func parseQueryParam(raw, name string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return parsed.Query().Get(name), nil
}

func userHandler(calls *atomic.Int32, delay time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1","email":"a@example.com","name":"Ada","role":"OWNER"}`))
	})
}

func TestCheckAuthDeduplicatesConcurrentCalls(t *testing.T) {
	var calls atomic.Int32
	manager, store := newTestManager(t, userHandler(&calls, 100*time.Millisecond))

	ctx := context.Background()
	require.NoError(t, store.SetToken(ctx, "sid-1", "tok"))

	const callers = 8
	users := make([]*apiclient.User, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := manager.CheckAuth(ctx, "sid-1", false)
			assert.NoError(t, err)
			users[i] = user
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent checks must collapse into one request")
	for _, user := range users {
		require.NotNil(t, user)
		assert.Equal(t, "u1", user.ID)
	}
}

func TestCheckAuthWithoutTokenSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	manager, _ := newTestManager(t, userHandler(&calls, 0))

	user, err := manager.CheckAuth(context.Background(), "sid-1", true)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, int32(0), calls.Load())
}

func TestCheckAuthForceIssuesFreshRequest(t *testing.T) {
	var calls atomic.Int32
	manager, store := newTestManager(t, userHandler(&calls, 0))

	ctx := context.Background()
	require.NoError(t, store.SetToken(ctx, "sid-1", "tok"))

	_, err := manager.CheckAuth(ctx, "sid-1", false)
	require.NoError(t, err)
	_, err = manager.CheckAuth(ctx, "sid-1", true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestCheckAuthUnauthorizedClearsSession(t *testing.T) {
	manager, store := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	ctx := context.Background()
	require.NoError(t, store.SetToken(ctx, "sid-1", "tok"))

	user, err := manager.CheckAuth(ctx, "sid-1", true)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Nil(t, manager.CurrentUser("sid-1"))

	_, err = store.GetToken(ctx, "sid-1")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestCheckAuthNetworkErrorKeepsStoredToken(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(userHandler(&calls, 0))
	store := storage.NewMemoryStore(time.Hour)
	api := apiclient.New(backend.URL, 500*time.Millisecond, store)
	manager := NewManager(api, store, "https://minutes.example.com", []byte(testSigningKey))

	ctx := context.Background()
	require.NoError(t, store.SetToken(ctx, "sid-1", "tok"))

	user, err := manager.CheckAuth(ctx, "sid-1", true)
	require.NoError(t, err)
	require.NotNil(t, user)

	// Backend goes away; verification fails with a network error
	backend.Close()

	user, err = manager.CheckAuth(ctx, "sid-1", true)
	require.NoError(t, err)
	assert.Nil(t, user, "network failure resolves unauthenticated")

	// The stored token survives, so the next attempt can still succeed
	token, err := store.GetToken(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestCheckAuthOtherErrorSurfacedToCaller(t *testing.T) {
	manager, store := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx := context.Background()
	require.NoError(t, store.SetToken(ctx, "sid-1", "tok"))

	user, err := manager.CheckAuth(ctx, "sid-1", true)
	require.Error(t, err)
	assert.Nil(t, user)
	assert.Equal(t, 500, apiclient.StatusCode(err))

	// Token is preserved on non-401 failures
	token, err := store.GetToken(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestLoginStoresRedirectAndBuildsAuthURL(t *testing.T) {
	manager, store := newTestManager(t, http.NotFoundHandler())
	ctx := context.Background()

	authURL, err := manager.Login(ctx, "sid-1", "google", "/series/9")
	require.NoError(t, err)
	assert.Contains(t, authURL, "/oauth2/authorization/google")
	assert.Contains(t, authURL, "redirect_uri=")
	assert.Contains(t, authURL, "state=")

	state, err := store.GetState(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "/series/9", state.RedirectAfterLogin)
}

func TestLoginDefaultsRedirectToDashboard(t *testing.T) {
	manager, store := newTestManager(t, http.NotFoundHandler())
	ctx := context.Background()

	_, err := manager.Login(ctx, "sid-1", "google", "")
	require.NoError(t, err)

	state, err := store.GetState(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, PathDashboard, state.RedirectAfterLogin)
}

func TestVerifyLoginState(t *testing.T) {
	manager, _ := newTestManager(t, http.NotFoundHandler())

	authURL, err := manager.Login(context.Background(), "sid-1", "google", "")
	require.NoError(t, err)

	parsed, err := parseQueryParam(authURL, "state")
	require.NoError(t, err)
	assert.True(t, manager.VerifyLoginState(parsed))
	assert.False(t, manager.VerifyLoginState("tampered"))
}

func TestActiveUserDropsRevokedSession(t *testing.T) {
	var calls atomic.Int32
	manager, store := newTestManager(t, userHandler(&calls, 0))

	ctx := context.Background()
	require.NoError(t, store.SetToken(ctx, "sid-1", "tok"))

	user, err := manager.CheckAuth(ctx, "sid-1", true)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotNil(t, manager.ActiveUser(ctx, "sid-1"))

	require.NoError(t, store.DeleteState(ctx, "sid-1"))

	assert.Nil(t, manager.ActiveUser(ctx, "sid-1"))
	assert.Nil(t, manager.CurrentUser("sid-1"), "revoked entry is evicted")
}

func TestPruneCacheEvictsDeadSessions(t *testing.T) {
	var calls atomic.Int32
	manager, store := newTestManager(t, userHandler(&calls, 0))

	ctx := context.Background()
	require.NoError(t, store.SetToken(ctx, "sid-live", "tok"))
	require.NoError(t, store.SetToken(ctx, "sid-dead", "tok"))

	for _, sid := range []string{"sid-live", "sid-dead"} {
		user, err := manager.CheckAuth(ctx, sid, true)
		require.NoError(t, err)
		require.NotNil(t, user)
	}

	require.NoError(t, store.DeleteState(ctx, "sid-dead"))
	manager.PruneCache(ctx)

	assert.NotNil(t, manager.CurrentUser("sid-live"))
	assert.Nil(t, manager.CurrentUser("sid-dead"))
}

func TestLogoutClearsLocalStateEvenWhenBackendFails(t *testing.T) {
	manager, store := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx := context.Background()
	require.NoError(t, store.SetToken(ctx, "sid-1", "tok"))

	manager.Logout(ctx, "sid-1")

	_, err := store.GetToken(ctx, "sid-1")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
	assert.Nil(t, manager.CurrentUser("sid-1"))
}
