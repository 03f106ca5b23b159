package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meetscribe/minutes-front/internal/config"
	"github.com/meetscribe/minutes-front/internal/crypto"
)

// ErrSessionNotFound is returned when a browser session doesn't exist
var ErrSessionNotFound = errors.New("session not found")

// ErrTokenNotFound is returned when a session has no API token
var ErrTokenNotFound = errors.New("token not found")

// SessionState is the per-browser state document. It carries the API bearer
// token plus the navigation bookkeeping that survives the OAuth round-trip:
// where to send the user after login, and any meeting-join intent captured
// before authentication completed.
type SessionState struct {
	SID                string    `json:"sid"`
	AuthToken          string    `json:"auth_token,omitempty"`
	IsAuthenticated    bool      `json:"isAuthenticated"`
	RedirectAfterLogin string    `json:"redirectAfterLogin,omitempty"`
	PendingRedirect    string    `json:"pendingRedirect,omitempty"`
	PendingJoinToken   string    `json:"pendingJoinToken,omitempty"`
	ShouldAutoJoin     bool      `json:"shouldAutoJoin,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	LastActive         time.Time `json:"last_active"`
}

// HasJoinIntent reports whether a join intent is pending
func (s *SessionState) HasJoinIntent() bool {
	return s.PendingJoinToken != ""
}

// JoinIntent is a captured intent to join a meeting by invite token
type JoinIntent struct {
	Token    string `json:"token"`
	AutoJoin bool   `json:"auto_join"`
}

// Store persists per-browser session state.
//
// Set* operations create the session document if it doesn't exist yet, the
// same way writing a key creates it. Consume* operations read and delete in
// one step so an intent is acted on exactly once; they return the zero value
// with a nil error when nothing is pending.
type Store interface {
	// GetState returns the state for sid, or ErrSessionNotFound
	GetState(ctx context.Context, sid string) (*SessionState, error)

	// EnsureState creates the state document if missing and refreshes
	// its last-active time
	EnsureState(ctx context.Context, sid string) (*SessionState, error)

	// SetToken stores the API bearer token and marks the session
	// authenticated. An empty token is equivalent to ClearToken.
	SetToken(ctx context.Context, sid, token string) error

	// ClearToken removes the token and authenticated flag. Navigation
	// state (redirects, join intent) is left in place so it survives a
	// re-login.
	ClearToken(ctx context.Context, sid string) error

	// GetToken returns the session's API token, or ErrTokenNotFound
	GetToken(ctx context.Context, sid string) (string, error)

	SetRedirectAfterLogin(ctx context.Context, sid, target string) error
	ConsumeRedirectAfterLogin(ctx context.Context, sid string) (string, error)

	SetPendingRedirect(ctx context.Context, sid, target string) error
	ConsumePendingRedirect(ctx context.Context, sid string) (string, error)

	SetJoinIntent(ctx context.Context, sid string, intent JoinIntent) error
	ConsumeJoinIntent(ctx context.Context, sid string) (*JoinIntent, error)
	ClearJoinIntent(ctx context.Context, sid string) error

	// DeleteState removes the whole session document
	DeleteState(ctx context.Context, sid string) error

	// ListStates returns all live sessions, for the admin endpoint
	ListStates(ctx context.Context) ([]SessionState, error)

	// CleanupExpiredStates removes sessions idle past the TTL and
	// returns how many were removed
	CleanupExpiredStates(ctx context.Context) (int, error)

	Close() error
}

// New builds the Store selected by the storage config
func New(ctx context.Context, cfg *config.StorageConfig, ttl time.Duration, encryptor crypto.Encryptor) (Store, error) {
	switch cfg.Kind {
	case config.StorageKindMemory, "":
		return NewMemoryStore(ttl), nil
	case config.StorageKindRedis:
		return NewRedisStore(cfg.RedisAddr, ttl)
	case config.StorageKindFirestore:
		return NewFirestoreStore(ctx, cfg.GCPProject, cfg.FirestoreDatabase, cfg.FirestoreCollection, ttl, encryptor)
	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Kind)
	}
}
