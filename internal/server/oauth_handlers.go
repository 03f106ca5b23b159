package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/meetscribe/minutes-front/internal/log"
	"github.com/meetscribe/minutes-front/internal/session"
	"github.com/meetscribe/minutes-front/internal/sessionctx"
)

// OAuthHandlers completes the login round-trip from the backend
type OAuthHandlers struct {
	sessions *session.Manager
}

// NewOAuthHandlers creates OAuth callback handlers
func NewOAuthHandlers(sessions *session.Manager) *OAuthHandlers {
	return &OAuthHandlers{sessions: sessions}
}

// RedirectHandler lands the browser after the backend's OAuth flow. The
// backend reports the outcome three ways: an error parameter, a literal
// bearer token in the URL, or nothing at all when it established the session
// over its own cookie channel.
//
// A literal token is stored and then stripped from the URL with a
// self-redirect, so it never stays in browser history. The no-token form
// marks the session optimistically authenticated; the forced verification
// that follows either confirms it or clears it.
func (h *OAuthHandlers) RedirectHandler(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionctx.SID(r.Context())
	if !ok {
		http.Redirect(w, r, session.PathAuth, http.StatusFound)
		return
	}

	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		// Provider-reported failure. No verification, no session changes.
		log.LogWarnWithFields("oauth", "Login failed at provider", map[string]any{
			"error": errParam,
		})
		h.renderError(w, OAuthErrorPageData{
			Title:     "Sign-in failed",
			Message:   "The sign-in attempt was not completed: " + errParam,
			RetryURL:  session.PathAuth,
			ShowRetry: true,
		})
		return
	}

	if state := query.Get("state"); state != "" && !h.sessions.VerifyLoginState(state) {
		h.renderError(w, OAuthErrorPageData{
			Title:     "Sign-in failed",
			Message:   "The sign-in response could not be verified. Please try again.",
			RetryURL:  session.PathAuth,
			ShowRetry: true,
		})
		return
	}

	if token := query.Get("token"); token != "" {
		if !strings.Contains(token, ".") {
			// Sentinel junk like "null" from a broken backend redirect
			if err := h.sessions.ClearToken(r.Context(), sid); err != nil {
				log.LogError("clearing malformed token: %v", err)
			}
			h.renderError(w, OAuthErrorPageData{
				Title:     "Sign-in failed",
				Message:   "The sign-in response was malformed. Please try again.",
				RetryURL:  session.PathAuth,
				ShowRetry: true,
			})
			return
		}

		if err := h.sessions.SetToken(r.Context(), sid, token); err != nil {
			log.LogError("storing token: %v", err)
			h.renderError(w, OAuthErrorPageData{
				Title:     "Sign-in failed",
				Message:   "Your sign-in could not be saved. Please try again.",
				RetryURL:  session.PathAuth,
				ShowRetry: true,
			})
			return
		}

		// Strip the token from the URL before doing anything else
		clean := url.Values{}
		if returnTo := query.Get("returnTo"); returnTo != "" {
			clean.Set("returnTo", returnTo)
		}
		if query.Get("success") == "true" {
			clean.Set("success", "true")
		}
		target := session.PathOAuthRedirect
		if len(clean) > 0 {
			target += "?" + clean.Encode()
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	// Cookie-channel callback: no token in the URL. Mark the session
	// authenticated so the verification below actually sends a request.
	if !h.sessions.HasToken(r.Context(), sid) {
		if err := h.sessions.SetToken(r.Context(), sid, session.OptimisticToken); err != nil {
			log.LogError("storing optimistic token: %v", err)
		}
	}

	user, err := h.sessions.CheckAuth(r.Context(), sid, true)
	if err != nil || user == nil {
		if err != nil {
			log.LogError("post-login verification: %v", err)
		}
		if clearErr := h.sessions.ClearToken(r.Context(), sid); clearErr != nil {
			log.LogError("clearing unverified token: %v", clearErr)
		}
		h.renderError(w, OAuthErrorPageData{
			Title:     "Almost there",
			Message:   "We couldn't confirm your sign-in. Please try again.",
			RetryURL:  session.PathAuth,
			ShowRetry: true,
		})
		return
	}

	target, err := h.sessions.ResolvePostAuthTarget(r.Context(), sid, session.NavigationContext{
		Success:       query.Get("success") == "true",
		ReturnTo:      query.Get("returnTo"),
		OnAuthPage:    true,
		RedirectQuery: query.Get("returnTo"),
	})
	if err != nil {
		log.LogError("resolving post-auth target: %v", err)
		target = session.PathDashboard
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *OAuthHandlers) renderError(w http.ResponseWriter, data OAuthErrorPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := oauthErrorPageTemplate.Execute(w, data); err != nil {
		log.LogError("rendering OAuth error page: %v", err)
	}
}
