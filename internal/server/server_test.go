package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meetscribe/minutes-front/internal/apiclient"
	"github.com/meetscribe/minutes-front/internal/crypto"
	"github.com/meetscribe/minutes-front/internal/session"
	"github.com/meetscribe/minutes-front/internal/sessionctx"
	"github.com/meetscribe/minutes-front/internal/storage"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

// testEnv wires a fake backend, a memory store, and a session manager the
// way the application does
type testEnv struct {
	backend  *httptest.Server
	store    *storage.MemoryStore
	api      *apiclient.Client
	sessions *session.Manager
	csrf     *crypto.CSRFProtection
}

func newTestEnv(t *testing.T, backend http.Handler) *testEnv {
	t.Helper()

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store := storage.NewMemoryStore(time.Hour)
	api := apiclient.New(srv.URL, 5*time.Second, store)
	sessions := session.NewManager(api, store, "https://minutes.example.com", []byte(testSigningKey))
	csrf := crypto.NewCSRFProtection([]byte(testSigningKey), time.Hour)

	return &testEnv{
		backend:  srv,
		store:    store,
		api:      api,
		sessions: sessions,
		csrf:     &csrf,
	}
}

// request builds a request carrying sid on its context, the way the session
// middleware would
func (e *testEnv) request(method, target, sid string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(sessionctx.WithSID(req.Context(), sid))
}

// backendUser responds to the verification endpoint with a fixed user and
// 401 everywhere else without a bearer token
func backendUser(id, email string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"` + id + `","email":"` + email + `","name":"Test User","role":"OWNER","emailVerified":true}}`))
	})
	return mux
}
