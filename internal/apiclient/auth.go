package apiclient

import (
	"context"
	"net/http"
)

// Me verifies the session against the backend and returns the current user.
// The call is cache-busted so a stale cached response can't mask an expired
// session.
func (c *Client) Me(ctx context.Context, sid string) (*User, error) {
	var user User
	err := c.get(ctx, sid, "/api/auth/me", nil, RequestOptions{CacheBust: true}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout tells the backend to invalidate the session. Best-effort: callers
// clear local state regardless of the outcome.
func (c *Client) Logout(ctx context.Context, sid string) error {
	return c.do(ctx, sid, requestSpec{
		method: http.MethodPost,
		path:   "/api/auth/logout",
	}, nil)
}
