package server

import (
	"net/http"
	"net/url"

	"github.com/meetscribe/minutes-front/internal/apiclient"
	"github.com/meetscribe/minutes-front/internal/cookie"
	"github.com/meetscribe/minutes-front/internal/crypto"
	"github.com/meetscribe/minutes-front/internal/log"
	"github.com/meetscribe/minutes-front/internal/session"
	"github.com/meetscribe/minutes-front/internal/sessionctx"
	"github.com/meetscribe/minutes-front/internal/storage"
)

// JoinHandlers serves the join-by-invitation flow
type JoinHandlers struct {
	api      *apiclient.Client
	sessions *session.Manager
	store    storage.Store
	csrf     *crypto.CSRFProtection
}

// NewJoinHandlers creates join handlers with dependency injection
func NewJoinHandlers(api *apiclient.Client, sessions *session.Manager, store storage.Store, csrf *crypto.CSRFProtection) *JoinHandlers {
	return &JoinHandlers{api: api, sessions: sessions, store: store, csrf: csrf}
}

// JoinPageHandler validates an invitation token and either joins the meeting
// automatically or renders the join page.
//
// The token is validated without any session side effects, so an expired
// session never gets cleared just because someone opened an invite link.
// When the invitation requires an account and the visitor has none, the
// intent is stored and the visitor goes through login; coming back here with
// the stored intent still matching the URL token triggers the one automatic
// join attempt.
func (h *JoinHandlers) JoinPageHandler(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionctx.SID(r.Context())
	if !ok {
		http.Redirect(w, r, session.PathRoot, http.StatusFound)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		h.renderPage(w, JoinPageData{
			Valid:  false,
			Reason: "This invitation link is missing its token.",
		})
		return
	}

	validation, err := h.api.ValidateJoinToken(r.Context(), sid, token)
	if err != nil {
		log.LogErrorWithFields("join", "Token validation failed", map[string]any{
			"error": err.Error(),
		})
		h.renderPage(w, JoinPageData{
			Valid:  false,
			Reason: "The invitation could not be verified right now. Please try again later.",
		})
		return
	}
	if !validation.Valid {
		h.renderPage(w, JoinPageData{
			Valid:  false,
			Reason: validation.Reason,
		})
		return
	}

	user, err := h.sessions.CheckAuth(r.Context(), sid, false)
	if err != nil {
		user = nil
	}

	if validation.RequiresAuth && user == nil {
		if err := h.store.SetJoinIntent(r.Context(), sid, storage.JoinIntent{Token: token, AutoJoin: true}); err != nil {
			log.LogError("recording join intent: %v", err)
		}
		returnTo := session.JoinURL(token, false)
		http.Redirect(w, r, session.PathAuth+"?returnTo="+url.QueryEscape(returnTo), http.StatusFound)
		return
	}

	data := JoinPageData{Token: token, Valid: true}

	details, err := h.api.JoinTokenDetails(r.Context(), sid, token)
	if err != nil {
		log.LogWarn("join token details unavailable: %v", err)
		details = &apiclient.JoinTokenDetails{MeetingTitle: "your meeting"}
	}
	data.Details = details

	if user != nil && h.shouldAutoJoin(r, sid, token) {
		meeting, err := h.joinOnce(r, sid, token)
		if err == nil {
			http.Redirect(w, r, "/meetings/"+url.PathEscape(meeting.ID), http.StatusFound)
			return
		}
		log.LogErrorWithFields("join", "Automatic join failed", map[string]any{
			"error": err.Error(),
		})
		data.Message = "Joining automatically didn't work. You can try again below."
		data.MessageType = "error"
	}

	csrfToken, err := h.csrf.Generate()
	if err != nil {
		log.LogError("generating CSRF token: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	cookie.SetCSRF(w, csrfToken)
	data.CSRFToken = csrfToken

	h.renderPage(w, data)
}

// shouldAutoJoin reports whether a stored join intent matches the URL token.
// A mismatched intent (a second, different invite opened mid-flow) is left
// alone.
func (h *JoinHandlers) shouldAutoJoin(r *http.Request, sid, token string) bool {
	state, err := h.store.GetState(r.Context(), sid)
	if err != nil {
		return false
	}
	return state.ShouldAutoJoin && state.PendingJoinToken == token
}

// joinOnce consumes the intent before attempting the join, so a failure is
// surfaced to the user rather than retried on every page load
func (h *JoinHandlers) joinOnce(r *http.Request, sid, token string) (*apiclient.Meeting, error) {
	if _, err := h.store.ConsumeJoinIntent(r.Context(), sid); err != nil {
		log.LogError("consuming join intent: %v", err)
	}
	return h.api.JoinMeeting(r.Context(), sid, token)
}

// JoinActionHandler handles the explicit join button
func (h *JoinHandlers) JoinActionHandler(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionctx.SID(r.Context())
	if !ok {
		http.Redirect(w, r, session.PathRoot, http.StatusFound)
		return
	}

	token := r.PostFormValue("token")
	if token == "" {
		http.Redirect(w, r, session.PathJoin, http.StatusFound)
		return
	}

	if h.shouldAutoJoin(r, sid, token) {
		// The explicit join satisfies the stored intent
		if _, err := h.store.ConsumeJoinIntent(r.Context(), sid); err != nil {
			log.LogError("consuming join intent: %v", err)
		}
	}

	meeting, err := h.api.JoinMeeting(r.Context(), sid, token)
	if err != nil {
		log.LogErrorWithFields("join", "Join failed", map[string]any{
			"error": err.Error(),
		})
		http.Redirect(w, r, session.JoinURL(token, false), http.StatusFound)
		return
	}

	http.Redirect(w, r, "/meetings/"+url.PathEscape(meeting.ID), http.StatusFound)
}

func (h *JoinHandlers) renderPage(w http.ResponseWriter, data JoinPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := joinPageTemplate.Execute(w, data); err != nil {
		log.LogError("rendering join page: %v", err)
	}
}
