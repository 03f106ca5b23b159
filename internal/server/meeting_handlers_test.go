package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetscribe/minutes-front/internal/apiclient"
	"github.com/meetscribe/minutes-front/internal/sessionctx"
)

func newMeetingHandlers(env *testEnv) *MeetingHandlers {
	return NewMeetingHandlers(env.api, env.csrf)
}

// withUser attaches a verified user to the request context, the way the
// route guard would
func withUser(req *http.Request) *http.Request {
	return req.WithContext(sessionctx.WithUser(req.Context(), &apiclient.User{
		ID:    "u1",
		Email: "user@example.com",
		Name:  "Test User",
	}))
}

func TestDashboardDegradesWhenStatsUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/dashboard/stats", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/v1/dashboard/recent-meetings", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"meetingId": "m-1", "title": "Planning", "status": "COMPLETED"},
		})
	})
	env := newTestEnv(t, mux)
	require.NoError(t, env.store.SetToken(context.Background(), "sid-1", "tok"))

	rec := httptest.NewRecorder()
	newMeetingHandlers(env).DashboardHandler(rec, withUser(env.request("GET", "/dashboard", "sid-1")))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Planning")
	// Stats fall back to zero values rather than failing the page
	assert.Contains(t, body, "Total meetings")
}

func TestMeetingDetailAggregatesTolerantly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/meetings/m-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "m-1", "title": "Quarterly Review", "status": "COMPLETED"}})
	})
	mux.HandleFunc("/api/v1/meetings/m-1/transcript", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/api/v1/meetings/m-1/action-items", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "a-1", "description": "Send the follow-up deck", "completed": false},
		})
	})
	mux.HandleFunc("/api/v1/meetings/m-1/attendees", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/v1/meetings/m-1/processing-status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "COMPLETED"})
	})
	env := newTestEnv(t, mux)
	require.NoError(t, env.store.SetToken(context.Background(), "sid-1", "tok"))

	req := env.request("GET", "/meetings/m-1", "sid-1")
	req.SetPathValue("id", "m-1")
	rec := httptest.NewRecorder()
	newMeetingHandlers(env).MeetingHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Quarterly Review")
	assert.Contains(t, body, "Send the follow-up deck")
	assert.Contains(t, body, "Transcript not available.")
	assert.Contains(t, body, "No attendees recorded.")
}

func TestMeetingDetailNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	env := newTestEnv(t, mux)
	require.NoError(t, env.store.SetToken(context.Background(), "sid-1", "tok"))

	req := env.request("GET", "/meetings/missing", "sid-1")
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	newMeetingHandlers(env).MeetingHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateMeetingRedirectsToUploadStep(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/meetings", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"meetingId": "m-new", "title": req["title"]}})
	})
	env := newTestEnv(t, mux)
	require.NoError(t, env.store.SetToken(context.Background(), "sid-1", "tok"))

	req := env.request("POST", "/meetings/new", "sid-1")
	req.PostForm = map[string][]string{
		"title":           {"Sprint Retro"},
		"durationMinutes": {"45"},
	}
	rec := httptest.NewRecorder()
	newMeetingHandlers(env).CreateMeetingHandler(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/meetings/new?step=2&meeting=m-new", rec.Header().Get("Location"))
}

func TestCreateMeetingRequiresTitle(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	req := env.request("POST", "/meetings/new", "sid-1")
	req.PostForm = map[string][]string{"title": {"   "}}
	rec := httptest.NewRecorder()
	newMeetingHandlers(env).CreateMeetingHandler(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "message=")
}

func TestProcessingStreamStopsAtTerminalState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/meetings/m-1/processing-status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "COMPLETED", "progress": 100})
	})
	env := newTestEnv(t, mux)
	require.NoError(t, env.store.SetToken(context.Background(), "sid-1", "tok"))

	req := env.request("GET", "/meetings/m-1/processing/stream", "sid-1")
	req.SetPathValue("id", "m-1")
	rec := httptest.NewRecorder()
	newMeetingHandlers(env).ProcessingStreamHandler(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: "), body)
	assert.Contains(t, body, `"status":"COMPLETED"`)
	// Terminal state ends the stream after a single event
	assert.Equal(t, 1, strings.Count(body, "data: "))
}

func TestSplitEmails(t *testing.T) {
	emails := splitEmails("Alice@Example.com\nbob@example.com, not-an-email\n charlie@example.com ")
	assert.Equal(t, []string{"alice@example.com", "bob@example.com", "charlie@example.com"}, emails)
}
