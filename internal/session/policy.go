package session

import (
	"context"
	"net/url"
	"strings"

	"github.com/meetscribe/minutes-front/internal/storage"
	"github.com/meetscribe/minutes-front/internal/urlutil"
)

// Routes the navigation policy reasons about
const (
	PathRoot          = "/"
	PathAuth          = "/auth"
	PathLogin         = "/login"
	PathDashboard     = "/dashboard"
	PathJoin          = "/meetings/join"
	PathJoinLegacy    = "/join-meeting"
	PathOAuthRedirect = "/oauth2/redirect"
)

// NavigationContext is what the current request tells us about where the
// user came from
type NavigationContext struct {
	// Success is the explicit success=true marker on the URL
	Success bool

	// ReturnTo is the URL's returnTo parameter
	ReturnTo string

	// RedirectQuery is the auth page's explicit redirect parameter
	RedirectQuery string

	// OnAuthPage is true when the request is for the login page
	OnAuthPage bool
}

// IsAuthPath reports whether path is a login or OAuth route, where redirect-
// to-login must never point to avoid loops
func IsAuthPath(path string) bool {
	return path == PathAuth || path == PathLogin ||
		strings.HasPrefix(path, PathOAuthRedirect) ||
		strings.HasPrefix(path, "/oauth2/")
}

// safeTarget reports whether target is a usable post-login destination:
// a local path that doesn't lead straight back into the auth flow
func safeTarget(target string) bool {
	if target == "" || !urlutil.IsLocalPath(target) {
		return false
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return false
	}
	return parsed.Path != PathRoot && !IsAuthPath(parsed.Path)
}

// joinToken extracts the invitation token when target points at the
// join-meeting route, or returns ""
func joinToken(target string) string {
	parsed, err := url.Parse(target)
	if err != nil {
		return ""
	}
	if parsed.Path != PathJoin && parsed.Path != PathJoinLegacy {
		return ""
	}
	return parsed.Query().Get("token")
}

// JoinURL builds the join-page URL for an invitation token
func JoinURL(token string, fromLogin bool) string {
	params := map[string]string{"token": token}
	if fromLogin {
		params["fromLogin"] = "true"
	}
	return urlutil.WithQuery(PathJoin, params)
}

// ResolvePostAuthTarget decides where a freshly authenticated session should
// land. Priority, first match wins:
//
//  1. explicit success marker: its returnTo, or the dashboard
//  2. a pending join intent: consume it and go join the meeting
//  3. on the auth page: explicit redirect parameter over the stored keys
//     (both stored keys are consumed regardless of which wins); a join
//     target re-arms the join intent; unusable targets fall back to the
//     dashboard
//
// An empty return value means no navigation is called for.
func (m *Manager) ResolvePostAuthTarget(ctx context.Context, sid string, nav NavigationContext) (string, error) {
	if nav.Success {
		if safeTarget(nav.ReturnTo) {
			return nav.ReturnTo, nil
		}
		return PathDashboard, nil
	}

	intent, err := m.store.ConsumeJoinIntent(ctx, sid)
	if err != nil {
		return "", err
	}
	if intent != nil {
		return JoinURL(intent.Token, true), nil
	}

	if nav.OnAuthPage {
		pending, err := m.store.ConsumePendingRedirect(ctx, sid)
		if err != nil {
			return "", err
		}
		legacy, err := m.store.ConsumeRedirectAfterLogin(ctx, sid)
		if err != nil {
			return "", err
		}

		target := nav.RedirectQuery
		if target == "" {
			target = pending
		}
		if target == "" {
			target = legacy
		}

		if token := joinToken(target); token != "" {
			if err := m.store.SetJoinIntent(ctx, sid, storage.JoinIntent{Token: token, AutoJoin: true}); err != nil {
				return "", err
			}
			return target, nil
		}
		if !safeTarget(target) {
			return PathDashboard, nil
		}
		return target, nil
	}

	return "", nil
}
