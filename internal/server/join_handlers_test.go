package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetscribe/minutes-front/internal/storage"
)

// joinBackend fakes the public invitation endpoints plus the verification
// endpoint
func joinBackend(requiresAuth bool, joinCalls *atomic.Int32) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/public/meetings/join/validate", func(w http.ResponseWriter, r *http.Request) {
		valid := r.URL.Query().Get("token") == "inv-1"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"valid":        valid,
			"requiresAuth": requiresAuth,
			"reason":       map[bool]string{true: "", false: "This invitation has expired."}[valid],
		})
	})
	mux.HandleFunc("/api/public/meetings/join/token-details", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"meetingTitle":  "Weekly Sync",
			"organizerName": "Sam",
			"requiresAuth":  requiresAuth,
		})
	})
	mux.HandleFunc("POST /api/public/meetings/join", func(w http.ResponseWriter, r *http.Request) {
		joinCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"meetingId": "m-42", "title": "Weekly Sync"}})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "u1", "email": "user@example.com", "name": "Test User"})
	})
	return mux
}

func newJoinHandlers(env *testEnv) *JoinHandlers {
	return NewJoinHandlers(env.api, env.sessions, env.store, env.csrf)
}

func TestJoinPageInvalidTokenRendersReason(t *testing.T) {
	var joins atomic.Int32
	env := newTestEnv(t, joinBackend(false, &joins))

	rec := httptest.NewRecorder()
	newJoinHandlers(env).JoinPageHandler(rec, env.request("GET", "/meetings/join?token=bogus", "sid-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "This invitation has expired.")
	assert.Zero(t, joins.Load())
}

func TestJoinPageMissingTokenRendersError(t *testing.T) {
	var joins atomic.Int32
	env := newTestEnv(t, joinBackend(false, &joins))

	rec := httptest.NewRecorder()
	newJoinHandlers(env).JoinPageHandler(rec, env.request("GET", "/meetings/join", "sid-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing its token")
}

func TestJoinPageAnonymousVisitorRoutedThroughLogin(t *testing.T) {
	var joins atomic.Int32
	env := newTestEnv(t, joinBackend(true, &joins))

	rec := httptest.NewRecorder()
	newJoinHandlers(env).JoinPageHandler(rec, env.request("GET", "/meetings/join?token=inv-1", "sid-1"))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth?returnTo=%2Fmeetings%2Fjoin%3Ftoken%3Dinv-1", rec.Header().Get("Location"))

	// The intent was stored for after login
	state, err := env.store.GetState(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "inv-1", state.PendingJoinToken)
	assert.True(t, state.ShouldAutoJoin)
	assert.Zero(t, joins.Load())
}

func TestJoinPageAutoJoinsWhenIntentMatches(t *testing.T) {
	var joins atomic.Int32
	env := newTestEnv(t, joinBackend(true, &joins))
	ctx := context.Background()
	require.NoError(t, env.store.SetToken(ctx, "sid-1", "tok"))
	require.NoError(t, env.store.SetJoinIntent(ctx, "sid-1", storage.JoinIntent{Token: "inv-1", AutoJoin: true}))

	rec := httptest.NewRecorder()
	newJoinHandlers(env).JoinPageHandler(rec, env.request("GET", "/meetings/join?token=inv-1&fromLogin=true", "sid-1"))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/meetings/m-42", rec.Header().Get("Location"))
	assert.Equal(t, int32(1), joins.Load())

	// The intent is gone: reloading the page must not join again
	rec = httptest.NewRecorder()
	newJoinHandlers(env).JoinPageHandler(rec, env.request("GET", "/meetings/join?token=inv-1&fromLogin=true", "sid-1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), joins.Load())
}

func TestJoinPageMismatchedIntentLeftAlone(t *testing.T) {
	var joins atomic.Int32
	env := newTestEnv(t, joinBackend(true, &joins))
	ctx := context.Background()
	require.NoError(t, env.store.SetToken(ctx, "sid-1", "tok"))
	require.NoError(t, env.store.SetJoinIntent(ctx, "sid-1", storage.JoinIntent{Token: "inv-other", AutoJoin: true}))

	rec := httptest.NewRecorder()
	newJoinHandlers(env).JoinPageHandler(rec, env.request("GET", "/meetings/join?token=inv-1", "sid-1"))

	// Renders the page without joining, and keeps the other invite's intent
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, joins.Load())

	state, err := env.store.GetState(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "inv-other", state.PendingJoinToken)
}

func TestJoinActionJoinsAndConsumesMatchingIntent(t *testing.T) {
	var joins atomic.Int32
	env := newTestEnv(t, joinBackend(true, &joins))
	ctx := context.Background()
	require.NoError(t, env.store.SetToken(ctx, "sid-1", "tok"))
	require.NoError(t, env.store.SetJoinIntent(ctx, "sid-1", storage.JoinIntent{Token: "inv-1", AutoJoin: true}))

	req := env.request("POST", "/meetings/join", "sid-1")
	req.PostForm = map[string][]string{"token": {"inv-1"}}
	rec := httptest.NewRecorder()
	newJoinHandlers(env).JoinActionHandler(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/meetings/m-42", rec.Header().Get("Location"))
	assert.Equal(t, int32(1), joins.Load())

	state, err := env.store.GetState(ctx, "sid-1")
	require.NoError(t, err)
	assert.False(t, state.HasJoinIntent())
}
