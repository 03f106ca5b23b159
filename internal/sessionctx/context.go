package sessionctx

import (
	"context"

	"github.com/meetscribe/minutes-front/internal/apiclient"
)

type contextKey string

const (
	sidKey  contextKey = "session.sid"
	userKey contextKey = "session.user"
)

// WithSID attaches the browser session ID to the context
func WithSID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sidKey, sid)
}

// SID retrieves the browser session ID from the context
func SID(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sidKey).(string)
	return sid, ok
}

// WithUser attaches the verified user to the context
func WithUser(ctx context.Context, user *apiclient.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// User retrieves the verified user from the context, nil when the request
// is unauthenticated
func User(ctx context.Context) *apiclient.User {
	user, _ := ctx.Value(userKey).(*apiclient.User)
	return user
}
