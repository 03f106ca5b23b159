package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meetscribe/minutes-front/internal/config"
	"github.com/meetscribe/minutes-front/internal/storage"
)

func adminEnv(t *testing.T) (*storage.MemoryStore, http.Handler) {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	store := storage.NewMemoryStore(time.Hour)
	handlers := NewAdminHandlers(store)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/sessions", handlers.SessionsHandler)
	mux.HandleFunc("POST /admin/sessions/revoke", handlers.RevokeSessionHandler)
	mux.HandleFunc("POST /admin/log-level", handlers.LogLevelHandler)

	auth := NewAdminAuthMiddleware(&config.AdminConfig{
		Enabled:        true,
		Username:       "ops",
		HashedPassword: config.Secret(hashed),
	})
	return store, auth(mux)
}

func TestAdminRequiresBasicAuth(t *testing.T) {
	_, handler := adminEnv(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/admin/sessions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest("GET", "/admin/sessions", nil)
	req.SetBasicAuth("ops", "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminSessionsListsWithoutTokens(t *testing.T) {
	store, handler := adminEnv(t)
	ctx := context.Background()
	require.NoError(t, store.SetToken(ctx, "sid-1", "secret-token"))
	require.NoError(t, store.SetPendingRedirect(ctx, "sid-1", "/meetings"))

	req := httptest.NewRequest("GET", "/admin/sessions", nil)
	req.SetBasicAuth("ops", "hunter2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-token")

	var payload struct {
		Sessions []adminSessionView `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Sessions, 1)
	assert.Equal(t, "sid-1", payload.Sessions[0].SID)
	assert.True(t, payload.Sessions[0].Authenticated)
	assert.Equal(t, "/meetings", payload.Sessions[0].PendingRedirect)
}

func TestAdminLogLevelValidation(t *testing.T) {
	_, handler := adminEnv(t)

	req := httptest.NewRequest("POST", "/admin/log-level", nil)
	req.SetBasicAuth("ops", "hunter2")
	req.PostForm = map[string][]string{"level": {"verbose"}}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest("POST", "/admin/log-level", nil)
	req.SetBasicAuth("ops", "hunter2")
	req.PostForm = map[string][]string{"level": {"info"}}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRevokeDeletesSession(t *testing.T) {
	store, handler := adminEnv(t)
	ctx := context.Background()
	require.NoError(t, store.SetToken(ctx, "sid-1", "tok"))

	req := httptest.NewRequest("POST", "/admin/sessions/revoke", nil)
	req.SetBasicAuth("ops", "hunter2")
	req.PostForm = map[string][]string{"sid": {"sid-1"}}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	_, err := store.GetState(ctx, "sid-1")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}
