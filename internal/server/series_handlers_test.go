package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesListAndDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/meeting-series", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "s-1", "name": "Weekly Sync", "meetingCount": 12},
		})
	})
	mux.HandleFunc("GET /api/v1/meeting-series/s-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "s-1", "name": "Weekly Sync",
			"meetings": []map[string]any{{"meetingId": "m-3", "title": "Sync #12", "status": "COMPLETED"}},
		})
	})
	env := newTestEnv(t, mux)
	require.NoError(t, env.store.SetToken(context.Background(), "sid-1", "tok"))
	handlers := NewSeriesHandlers(env.api)

	rec := httptest.NewRecorder()
	handlers.SeriesListHandler(rec, env.request("GET", "/series", "sid-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Weekly Sync")

	req := env.request("GET", "/series/s-1", "sid-1")
	req.SetPathValue("id", "s-1")
	rec = httptest.NewRecorder()
	handlers.SeriesDetailHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sync #12")
}

func TestSeriesDetailNotFound(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())
	require.NoError(t, env.store.SetToken(context.Background(), "sid-1", "tok"))

	req := env.request("GET", "/series/missing", "sid-1")
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	NewSeriesHandlers(env.api).SeriesDetailHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
