package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/meetscribe/minutes-front/internal/log"
	"github.com/meetscribe/minutes-front/internal/session"
	"github.com/meetscribe/minutes-front/internal/sessionctx"
)

// HTTPServer manages the HTTP server lifecycle
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer creates a new HTTP server with the given handler and address
func NewHTTPServer(handler http.Handler, addr string) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
	}
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	log.LogInfoWithFields("http", "HTTP server starting", map[string]any{
		"addr": h.server.Addr,
	})

	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	log.LogInfoWithFields("http", "HTTP server stopping", map[string]any{
		"addr": h.server.Addr,
	})

	if err := h.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.LogInfoWithFields("http", "HTTP server stopped", map[string]any{
		"addr": h.server.Addr,
	})
	return nil
}

// HealthHandler handles health check requests
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler for health checks
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// LandingHandler serves the marketing landing page at the root path
type LandingHandler struct {
	sessions *session.Manager
}

// NewLandingHandler creates the landing page handler
func NewLandingHandler(sessions *session.Manager) *LandingHandler {
	return &LandingHandler{sessions: sessions}
}

// ServeHTTP renders the landing page. Authentication only changes which
// call-to-action shows, so the cached user is enough; no verification
// request is made here.
func (h *LandingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	authenticated := false
	if sid, ok := sessionctx.SID(r.Context()); ok {
		authenticated = h.sessions.ActiveUser(r.Context(), sid) != nil
	}

	render(w, landingPageTemplate, LandingPageData{Authenticated: authenticated})
}
