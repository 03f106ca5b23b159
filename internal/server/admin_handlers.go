package server

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/meetscribe/minutes-front/internal/config"
	jsonwriter "github.com/meetscribe/minutes-front/internal/json"
	"github.com/meetscribe/minutes-front/internal/log"
	"github.com/meetscribe/minutes-front/internal/storage"
)

// AdminHandlers serves the ops endpoints for inspecting and revoking
// browser sessions
type AdminHandlers struct {
	store storage.Store
}

// NewAdminHandlers creates admin handlers
func NewAdminHandlers(store storage.Store) *AdminHandlers {
	return &AdminHandlers{store: store}
}

// NewAdminAuthMiddleware gates the ops endpoints behind HTTP basic auth
// checked against the configured bcrypt hash
func NewAdminAuthMiddleware(cfg *config.AdminConfig) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(cfg.HashedPassword), []byte(password)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="minutes-front admin"`)
				jsonwriter.WriteUnauthorized(w, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// adminSessionView is what the sessions endpoint exposes. Tokens stay out
// of the response; only their presence is reported.
type adminSessionView struct {
	SID             string `json:"sid"`
	Authenticated   bool   `json:"authenticated"`
	HasJoinIntent   bool   `json:"hasJoinIntent"`
	PendingRedirect string `json:"pendingRedirect,omitempty"`
	CreatedAt       string `json:"createdAt"`
	LastActive      string `json:"lastActive"`
}

// SessionsHandler lists live browser sessions
func (h *AdminHandlers) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	states, err := h.store.ListStates(r.Context())
	if err != nil {
		log.LogError("listing sessions: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to list sessions")
		return
	}

	views := make([]adminSessionView, 0, len(states))
	for _, state := range states {
		views = append(views, adminSessionView{
			SID:             state.SID,
			Authenticated:   state.IsAuthenticated,
			HasJoinIntent:   state.HasJoinIntent(),
			PendingRedirect: state.PendingRedirect,
			CreatedAt:       state.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			LastActive:      state.LastActive.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	_ = jsonwriter.Write(w, map[string]any{"sessions": views})
}

// RevokeSessionHandler deletes a session's state document, logging that
// browser out of the front
func (h *AdminHandlers) RevokeSessionHandler(w http.ResponseWriter, r *http.Request) {
	sid := r.PostFormValue("sid")
	if sid == "" {
		jsonwriter.WriteBadRequest(w, "sid is required")
		return
	}

	if err := h.store.DeleteState(r.Context(), sid); err != nil {
		log.LogError("revoking session %s: %v", sid, err)
		jsonwriter.WriteInternalServerError(w, "Failed to revoke session")
		return
	}

	log.LogInfoWithFields("admin", "Session revoked", map[string]any{"sid": sid})
	_ = jsonwriter.Write(w, map[string]any{"revoked": sid})
}

// LogLevelHandler changes the log level at runtime
func (h *AdminHandlers) LogLevelHandler(w http.ResponseWriter, r *http.Request) {
	level := r.PostFormValue("level")
	if level == "" {
		jsonwriter.WriteBadRequest(w, "level is required")
		return
	}

	if err := log.SetLogLevel(level); err != nil {
		jsonwriter.WriteBadRequest(w, err.Error())
		return
	}
	_ = jsonwriter.Write(w, map[string]any{"level": level})
}
