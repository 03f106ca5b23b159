package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/meetscribe/minutes-front/internal/apiclient"
	"github.com/meetscribe/minutes-front/internal/crypto"
	"github.com/meetscribe/minutes-front/internal/log"
	"github.com/meetscribe/minutes-front/internal/storage"
	"github.com/meetscribe/minutes-front/internal/urlutil"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// LoginStateExpiry is how long the signed state on the authorization URL
// remains valid
const LoginStateExpiry = 10 * time.Minute

// OptimisticToken marks a session as authenticated before the literal token
// value is known, for callbacks where the backend established the session
// over its own cookie channel rather than handing a token back in the URL.
// The forced verification that follows makes it authoritative or clears it.
const OptimisticToken = "active"

// Manager owns per-session authentication state: the current-user cache,
// login/logout, and server verification with de-duplication of concurrent
// checks.
type Manager struct {
	api          *apiclient.Client
	store        storage.Store
	frontBaseURL string
	stateSigner  crypto.TokenSigner

	group singleflight.Group // one outstanding verification per sid

	mu    sync.RWMutex
	users map[string]*apiclient.User
}

// NewManager creates a session manager
func NewManager(api *apiclient.Client, store storage.Store, frontBaseURL string, signingKey []byte) *Manager {
	return &Manager{
		api:          api,
		store:        store,
		frontBaseURL: frontBaseURL,
		stateSigner:  crypto.NewTokenSigner(signingKey, LoginStateExpiry),
		users:        make(map[string]*apiclient.User),
	}
}

// CurrentUser returns the cached user for sid, nil when unauthenticated
func (m *Manager) CurrentUser(sid string) *apiclient.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users[sid]
}

// ActiveUser returns the cached user for sid after confirming the session
// still holds a token in the store. A revoked or expired session drops its
// cache entry here, so deletion from the store takes effect on the next
// guarded request.
func (m *Manager) ActiveUser(ctx context.Context, sid string) *apiclient.User {
	user := m.CurrentUser(sid)
	if user == nil {
		return nil
	}
	if _, err := m.store.GetToken(ctx, sid); err != nil {
		m.setUser(sid, nil)
		return nil
	}
	return user
}

func (m *Manager) setUser(sid string, user *apiclient.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user == nil {
		delete(m.users, sid)
	} else {
		m.users[sid] = user
	}
}

// PruneCache drops cached users whose sessions no longer hold a token in
// the store. Run periodically so entries for expired or revoked sessions
// that never come back don't accumulate.
func (m *Manager) PruneCache(ctx context.Context) {
	m.mu.RLock()
	sids := make([]string, 0, len(m.users))
	for sid := range m.users {
		sids = append(sids, sid)
	}
	m.mu.RUnlock()

	for _, sid := range sids {
		if _, err := m.store.GetToken(ctx, sid); err != nil {
			m.setUser(sid, nil)
		}
	}
}

// CheckAuth verifies the session against the backend.
//
// Concurrent calls for the same sid collapse into one verification request;
// late callers receive the leader's result. force drops any outstanding
// result and issues a fresh request. A session with no stored token resolves
// to nil without any network call.
//
// A nil user with a nil error is a settled "not authenticated". A non-nil
// error means the verification itself failed in a way the caller should act
// on (send the user to login).
func (m *Manager) CheckAuth(ctx context.Context, sid string, force bool) (*apiclient.User, error) {
	if _, err := m.store.GetToken(ctx, sid); err != nil {
		// Anonymous steady state, not an error
		m.setUser(sid, nil)
		return nil, nil
	}

	if force {
		m.group.Forget(sid)
	}

	result, err, shared := m.group.Do(sid, func() (any, error) {
		return m.api.Me(ctx, sid)
	})
	if shared {
		log.LogDebug("checkAuth for %s joined in-flight verification", sid)
	}

	if err == nil {
		user := result.(*apiclient.User)
		m.setUser(sid, user)
		return user, nil
	}

	if errors.Is(err, apiclient.ErrSessionExpired) || apiclient.StatusCode(err) == 401 {
		// Token already cleared by the client's 401 interception
		m.setUser(sid, nil)
		return nil, nil
	}

	if apiclient.IsNetworkError(err) {
		// Transient: the stored token survives for the next attempt, but
		// this check resolves unauthenticated
		log.LogWarnWithFields("session", "Verification unreachable, keeping stored session", map[string]any{
			"error": err.Error(),
		})
		m.setUser(sid, nil)
		return nil, nil
	}

	m.setUser(sid, nil)
	return nil, err
}

// loginState is the signed OAuth state parameter
type loginState struct {
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

// Login stores the post-login destination and returns the backend's
// provider authorization URL for a full-page navigation.
func (m *Manager) Login(ctx context.Context, sid, provider, redirectTarget string) (string, error) {
	if redirectTarget == "" {
		redirectTarget = PathDashboard
	}
	if err := m.store.SetRedirectAfterLogin(ctx, sid, redirectTarget); err != nil {
		return "", err
	}

	state, err := m.stateSigner.Sign(loginState{Provider: provider, CreatedAt: time.Now()})
	if err != nil {
		return "", err
	}

	oauthConfig := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			AuthURL: urlutil.MustJoinPath(m.api.BaseURL(), "/oauth2/authorization/", provider),
		},
		RedirectURL: urlutil.MustJoinPath(m.frontBaseURL, PathOAuthRedirect),
	}
	return oauthConfig.AuthCodeURL(state), nil
}

// VerifyLoginState checks a state parameter produced by Login. Callbacks
// without a state are tolerated (the literal-token and cookie channels
// don't echo it).
func (m *Manager) VerifyLoginState(state string) bool {
	var decoded loginState
	return m.stateSigner.Verify(state, &decoded) == nil
}

// Logout invalidates the backend session best-effort and always clears
// local state
func (m *Manager) Logout(ctx context.Context, sid string) {
	if err := m.api.Logout(ctx, sid); err != nil {
		log.LogWarnWithFields("session", "Backend logout failed, clearing local state anyway", map[string]any{
			"error": err.Error(),
		})
	}
	if err := m.store.ClearToken(ctx, sid); err != nil {
		log.LogError("clearing token on logout: %v", err)
	}
	m.setUser(sid, nil)
}

// HasToken reports whether the session has a stored API token
func (m *Manager) HasToken(ctx context.Context, sid string) bool {
	_, err := m.store.GetToken(ctx, sid)
	return err == nil
}

// SetToken stores a verified token for the session
func (m *Manager) SetToken(ctx context.Context, sid, token string) error {
	return m.store.SetToken(ctx, sid, token)
}

// ClearToken drops the session's token and cached user
func (m *Manager) ClearToken(ctx context.Context, sid string) error {
	m.setUser(sid, nil)
	return m.store.ClearToken(ctx, sid)
}
