package storage

import (
	"context"
	"sync"
	"time"
)

// Ensure MemoryStore implements the Store interface
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps session state in process memory. Sessions are lost on
// restart, which is fine for development and single-instance deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionState
	ttl      time.Duration
}

// NewMemoryStore creates an in-memory session store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*SessionState),
		ttl:      ttl,
	}
}

func (m *MemoryStore) expired(state *SessionState) bool {
	return m.ttl > 0 && time.Since(state.LastActive) > m.ttl
}

// get returns the live state for sid, dropping it lazily if expired.
// Caller must hold the write lock.
func (m *MemoryStore) get(sid string) (*SessionState, bool) {
	state, ok := m.sessions[sid]
	if !ok {
		return nil, false
	}
	if m.expired(state) {
		delete(m.sessions, sid)
		return nil, false
	}
	return state, true
}

// getOrCreate returns the live state for sid, creating it if missing.
// Caller must hold the write lock.
func (m *MemoryStore) getOrCreate(sid string) *SessionState {
	if state, ok := m.get(sid); ok {
		return state
	}
	state := &SessionState{
		SID:        sid,
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}
	m.sessions[sid] = state
	return state
}

// GetState returns a copy of the session state
func (m *MemoryStore) GetState(_ context.Context, sid string) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.get(sid)
	if !ok {
		return nil, ErrSessionNotFound
	}
	stateCopy := *state
	return &stateCopy, nil
}

// EnsureState creates the session if missing and refreshes its last-active time
func (m *MemoryStore) EnsureState(_ context.Context, sid string) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getOrCreate(sid)
	state.LastActive = time.Now()
	stateCopy := *state
	return &stateCopy, nil
}

// SetToken stores the API token and marks the session authenticated
func (m *MemoryStore) SetToken(ctx context.Context, sid, token string) error {
	if token == "" {
		return m.ClearToken(ctx, sid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getOrCreate(sid)
	state.AuthToken = token
	state.IsAuthenticated = true
	state.LastActive = time.Now()
	return nil
}

// ClearToken removes the token and authenticated flag only
func (m *MemoryStore) ClearToken(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.get(sid); ok {
		state.AuthToken = ""
		state.IsAuthenticated = false
	}
	return nil
}

// GetToken returns the session's API token
func (m *MemoryStore) GetToken(_ context.Context, sid string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.get(sid)
	if !ok {
		return "", ErrSessionNotFound
	}
	if state.AuthToken == "" {
		return "", ErrTokenNotFound
	}
	return state.AuthToken, nil
}

func (m *MemoryStore) SetRedirectAfterLogin(_ context.Context, sid, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreate(sid).RedirectAfterLogin = target
	return nil
}

func (m *MemoryStore) ConsumeRedirectAfterLogin(_ context.Context, sid string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.get(sid)
	if !ok {
		return "", nil
	}
	target := state.RedirectAfterLogin
	state.RedirectAfterLogin = ""
	return target, nil
}

func (m *MemoryStore) SetPendingRedirect(_ context.Context, sid, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreate(sid).PendingRedirect = target
	return nil
}

func (m *MemoryStore) ConsumePendingRedirect(_ context.Context, sid string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.get(sid)
	if !ok {
		return "", nil
	}
	target := state.PendingRedirect
	state.PendingRedirect = ""
	return target, nil
}

func (m *MemoryStore) SetJoinIntent(_ context.Context, sid string, intent JoinIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getOrCreate(sid)
	state.PendingJoinToken = intent.Token
	state.ShouldAutoJoin = intent.AutoJoin
	return nil
}

func (m *MemoryStore) ConsumeJoinIntent(_ context.Context, sid string) (*JoinIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.get(sid)
	if !ok || state.PendingJoinToken == "" {
		return nil, nil
	}
	intent := &JoinIntent{
		Token:    state.PendingJoinToken,
		AutoJoin: state.ShouldAutoJoin,
	}
	state.PendingJoinToken = ""
	state.ShouldAutoJoin = false
	return intent, nil
}

func (m *MemoryStore) ClearJoinIntent(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.get(sid); ok {
		state.PendingJoinToken = ""
		state.ShouldAutoJoin = false
	}
	return nil
}

// DeleteState removes the session entirely
func (m *MemoryStore) DeleteState(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sid)
	return nil
}

// ListStates returns copies of all live sessions
func (m *MemoryStore) ListStates(_ context.Context) ([]SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]SessionState, 0, len(m.sessions))
	for _, state := range m.sessions {
		if m.expired(state) {
			continue
		}
		states = append(states, *state)
	}
	return states, nil
}

// CleanupExpiredStates removes sessions idle past the TTL
func (m *MemoryStore) CleanupExpiredStates(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for sid, state := range m.sessions {
		if m.expired(state) {
			delete(m.sessions, sid)
			count++
		}
	}
	return count, nil
}

// Close is a no-op for the memory store
func (m *MemoryStore) Close() error {
	return nil
}
