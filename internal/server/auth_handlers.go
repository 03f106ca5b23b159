package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/meetscribe/minutes-front/internal/cookie"
	"github.com/meetscribe/minutes-front/internal/crypto"
	"github.com/meetscribe/minutes-front/internal/log"
	"github.com/meetscribe/minutes-front/internal/session"
	"github.com/meetscribe/minutes-front/internal/sessionctx"
	"github.com/meetscribe/minutes-front/internal/storage"
)

// AuthHandlers serves the login page and the login/logout actions
type AuthHandlers struct {
	sessions  *session.Manager
	store     storage.Store
	providers []string
	csrf      *crypto.CSRFProtection
}

// NewAuthHandlers creates auth handlers with dependency injection
func NewAuthHandlers(sessions *session.Manager, store storage.Store, providers []string, csrf *crypto.CSRFProtection) *AuthHandlers {
	return &AuthHandlers{
		sessions:  sessions,
		store:     store,
		providers: providers,
		csrf:      csrf,
	}
}

func providerDisplayName(name string) string {
	switch name {
	case "google":
		return "Google"
	case "microsoft":
		return "Microsoft"
	default:
		return strings.ToUpper(name[:1]) + name[1:]
	}
}

// LoginPageHandler serves the login page. An already-authenticated visitor is
// sent straight to their post-login destination. An unauthenticated visitor
// with a redirect parameter pointing at the join route gets a join intent
// recorded before the page renders, so the intent survives even if the OAuth
// round-trip loses the parameter.
func (h *AuthHandlers) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionctx.SID(r.Context())
	if !ok {
		http.Redirect(w, r, session.PathRoot, http.StatusFound)
		return
	}

	redirectParam := r.URL.Query().Get("redirect")
	if redirectParam == "" {
		redirectParam = r.URL.Query().Get("returnTo")
	}

	user, err := h.sessions.CheckAuth(r.Context(), sid, false)
	if err == nil && user != nil {
		target, err := h.sessions.ResolvePostAuthTarget(r.Context(), sid, session.NavigationContext{
			OnAuthPage:    true,
			RedirectQuery: redirectParam,
		})
		if err != nil {
			log.LogError("resolving post-auth target: %v", err)
			target = session.PathDashboard
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	if token := joinTokenFromTarget(redirectParam); token != "" {
		if err := h.store.SetJoinIntent(r.Context(), sid, storage.JoinIntent{Token: token, AutoJoin: true}); err != nil {
			log.LogError("recording join intent: %v", err)
		}
	}

	csrfToken, err := h.csrf.Generate()
	if err != nil {
		log.LogError("generating CSRF token: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	cookie.SetCSRF(w, csrfToken)

	data := AuthPageData{
		Redirect:  redirectParam,
		CSRFToken: csrfToken,
	}
	for _, name := range h.providers {
		data.Providers = append(data.Providers, ProviderData{
			Name:        name,
			DisplayName: providerDisplayName(name),
		})
	}
	if r.URL.Query().Get("expired") == "true" {
		data.Message = "Your session expired. Please sign in again."
		data.MessageType = "error"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := authPageTemplate.Execute(w, data); err != nil {
		log.LogError("rendering login page: %v", err)
	}
}

// joinTokenFromTarget extracts an invitation token when target is a local
// join-route URL
func joinTokenFromTarget(target string) string {
	if target == "" {
		return ""
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.IsAbs() {
		return ""
	}
	if parsed.Path != session.PathJoin && parsed.Path != session.PathJoinLegacy {
		return ""
	}
	return parsed.Query().Get("token")
}

// LoginActionHandler starts the OAuth flow for the chosen provider
func (h *AuthHandlers) LoginActionHandler(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionctx.SID(r.Context())
	if !ok {
		http.Redirect(w, r, session.PathAuth, http.StatusFound)
		return
	}

	provider := r.PostFormValue("provider")
	if !h.knownProvider(provider) {
		log.LogWarn("login requested for unknown provider %q", provider)
		http.Redirect(w, r, session.PathAuth, http.StatusFound)
		return
	}

	authURL, err := h.sessions.Login(r.Context(), sid, provider, r.PostFormValue("redirect"))
	if err != nil {
		log.LogError("starting login: %v", err)
		http.Redirect(w, r, session.PathAuth, http.StatusFound)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *AuthHandlers) knownProvider(name string) bool {
	for _, p := range h.providers {
		if p == name {
			return true
		}
	}
	return false
}

// LogoutHandler ends the session and returns to the landing page
func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if sid, ok := sessionctx.SID(r.Context()); ok {
		h.sessions.Logout(r.Context(), sid)
	}
	http.Redirect(w, r, session.PathAuth, http.StatusFound)
}
