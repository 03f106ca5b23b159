package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meetscribe/minutes-front/internal/apiclient"
	"github.com/meetscribe/minutes-front/internal/config"
	"github.com/meetscribe/minutes-front/internal/crypto"
	"github.com/meetscribe/minutes-front/internal/log"
	"github.com/meetscribe/minutes-front/internal/server"
	"github.com/meetscribe/minutes-front/internal/session"
	"github.com/meetscribe/minutes-front/internal/storage"
)

// MinutesFront represents the complete front application
type MinutesFront struct {
	config     config.Config
	httpServer *server.HTTPServer
	cleanup    *storage.CleanupManager
	store      storage.Store
}

// NewMinutesFront creates the front application with all dependencies built
func NewMinutesFront(ctx context.Context, cfg config.Config) (*MinutesFront, error) {
	front := cfg.Front

	log.LogInfoWithFields("minutesfront", "Building front application", map[string]any{
		"baseURL": front.BaseURL,
		"api":     front.API.BaseURL,
	})

	encryptor, err := crypto.NewAESEncryptor([]byte(front.Auth.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	store, err := storage.New(ctx, front.Storage, time.Duration(front.Sessions.TTL), encryptor)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	api := apiclient.New(front.API.BaseURL, time.Duration(front.API.Timeout), store)
	sessions := session.NewManager(api, store, front.BaseURL, []byte(front.Auth.SigningKey))

	cleanup := storage.NewCleanupManager(store, time.Duration(front.Sessions.CleanupInterval), sessions.PruneCache)

	mux := buildHTTPHandler(front, store, encryptor, api, sessions)
	httpServer := server.NewHTTPServer(mux, front.Addr)

	return &MinutesFront{
		config:     cfg,
		httpServer: httpServer,
		cleanup:    cleanup,
		store:      store,
	}, nil
}

// Run starts and manages the application lifecycle
func (m *MinutesFront) Run() error {
	log.LogInfoWithFields("minutesfront", "Starting front application", map[string]any{
		"addr": m.config.Front.Addr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.cleanup.Start(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := m.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("minutesfront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("minutesfront", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	case <-ctx.Done():
		shutdownReason = "context cancelled"
		log.LogInfoWithFields("minutesfront", "Context cancelled, shutting down", nil)
	}

	log.LogInfoWithFields("minutesfront", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": "30s",
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := m.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("minutesfront", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	m.cleanup.Stop()

	if err := m.store.Close(); err != nil {
		log.LogErrorWithFields("minutesfront", "Storage close error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("minutesfront", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}

// buildHTTPHandler creates the complete HTTP handler with all routing and
// middleware
func buildHTTPHandler(
	front config.FrontConfig,
	store storage.Store,
	encryptor crypto.Encryptor,
	api *apiclient.Client,
	sessions *session.Manager,
) http.Handler {
	mux := http.NewServeMux()

	csrf := crypto.NewCSRFProtection([]byte(front.Auth.SigningKey), 1*time.Hour)

	authHandlers := server.NewAuthHandlers(sessions, store, front.Auth.Providers, &csrf)
	oauthHandlers := server.NewOAuthHandlers(sessions)
	joinHandlers := server.NewJoinHandlers(api, sessions, store, &csrf)
	meetingHandlers := server.NewMeetingHandlers(api, &csrf)
	searchHandlers := server.NewSearchHandlers(api)
	seriesHandlers := server.NewSeriesHandlers(api)

	pageLogger := server.NewLoggerMiddleware("pages")
	authLogger := server.NewLoggerMiddleware("auth")
	recoverMW := server.NewRecoverMiddleware("http")
	sessionMW := server.NewSessionMiddleware(encryptor, store, time.Duration(front.Auth.CookieTTL))
	guard := server.NewRouteGuardMiddleware(sessions)
	csrfMW := server.NewCSRFMiddleware(&csrf)

	// Outermost first: recover, log, then session resolution
	public := func(h http.Handler) http.Handler {
		return server.ChainMiddleware(h, sessionMW, pageLogger, recoverMW)
	}
	publicAuth := func(h http.Handler) http.Handler {
		return server.ChainMiddleware(h, sessionMW, authLogger, recoverMW)
	}
	protected := func(h http.Handler) http.Handler {
		return server.ChainMiddleware(h, guard, sessionMW, pageLogger, recoverMW)
	}
	protectedForm := func(h http.Handler) http.Handler {
		return server.ChainMiddleware(h, csrfMW, guard, sessionMW, pageLogger, recoverMW)
	}

	mux.Handle("/health", server.NewHealthHandler())

	// Login and the OAuth round-trip
	mux.Handle("GET /auth", publicAuth(http.HandlerFunc(authHandlers.LoginPageHandler)))
	mux.Handle("GET /login", publicAuth(http.HandlerFunc(authHandlers.LoginPageHandler)))
	mux.Handle("POST /auth/login", publicAuth(server.ChainMiddleware(http.HandlerFunc(authHandlers.LoginActionHandler), csrfMW)))
	mux.Handle("POST /auth/logout", publicAuth(server.ChainMiddleware(http.HandlerFunc(authHandlers.LogoutHandler), csrfMW)))
	mux.Handle("GET /oauth2/redirect", publicAuth(http.HandlerFunc(oauthHandlers.RedirectHandler)))

	// Join by invitation: reachable while logged out
	mux.Handle("GET /meetings/join", public(http.HandlerFunc(joinHandlers.JoinPageHandler)))
	mux.Handle("GET /join-meeting", public(http.HandlerFunc(joinHandlers.JoinPageHandler)))
	mux.Handle("POST /meetings/join", public(server.ChainMiddleware(http.HandlerFunc(joinHandlers.JoinActionHandler), csrfMW)))

	// Everything below requires a verified session
	mux.Handle("GET /dashboard", protected(http.HandlerFunc(meetingHandlers.DashboardHandler)))
	mux.Handle("GET /meetings", protected(http.HandlerFunc(meetingHandlers.MeetingsHandler)))
	mux.Handle("GET /meetings/new", protected(http.HandlerFunc(meetingHandlers.NewMeetingPageHandler)))
	mux.Handle("GET /create-meeting", protected(http.HandlerFunc(meetingHandlers.NewMeetingPageHandler)))
	mux.Handle("POST /meetings/new", protectedForm(http.HandlerFunc(meetingHandlers.CreateMeetingHandler)))
	mux.Handle("GET /meetings/{id}", protected(http.HandlerFunc(meetingHandlers.MeetingHandler)))
	mux.Handle("POST /meetings/{id}/audio", protectedForm(http.HandlerFunc(meetingHandlers.UploadAudioHandler)))
	mux.Handle("POST /meetings/{id}/invite", protectedForm(http.HandlerFunc(meetingHandlers.InviteHandler)))
	mux.Handle("POST /meetings/{id}/process", protectedForm(http.HandlerFunc(meetingHandlers.ProcessHandler)))
	mux.Handle("POST /meetings/{id}/delete", protectedForm(http.HandlerFunc(meetingHandlers.DeleteMeetingHandler)))
	mux.Handle("GET /meetings/{id}/processing/stream", protected(http.HandlerFunc(meetingHandlers.ProcessingStreamHandler)))
	mux.Handle("GET /meetings/{id}/document", protected(http.HandlerFunc(meetingHandlers.DocumentHandler)))
	mux.Handle("GET /search", protected(http.HandlerFunc(searchHandlers.SearchPageHandler)))
	mux.Handle("GET /series", protected(http.HandlerFunc(seriesHandlers.SeriesListHandler)))
	mux.Handle("GET /series/{id}", protected(http.HandlerFunc(seriesHandlers.SeriesDetailHandler)))

	if front.Admin != nil && front.Admin.Enabled {
		adminHandlers := server.NewAdminHandlers(store)
		adminLogger := server.NewLoggerMiddleware("admin")
		adminAuth := server.NewAdminAuthMiddleware(front.Admin)
		admin := func(h http.Handler) http.Handler {
			return server.ChainMiddleware(h, adminAuth, adminLogger, recoverMW)
		}
		mux.Handle("GET /admin/sessions", admin(http.HandlerFunc(adminHandlers.SessionsHandler)))
		mux.Handle("POST /admin/sessions/revoke", admin(http.HandlerFunc(adminHandlers.RevokeSessionHandler)))
		mux.Handle("POST /admin/log-level", admin(http.HandlerFunc(adminHandlers.LogLevelHandler)))
	}

	mux.Handle("/", public(server.NewLandingHandler(sessions)))

	return mux
}
