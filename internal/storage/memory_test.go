package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreTokenLifecycle(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	// No session yet
	_, err := store.GetToken(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Setting a token creates the session and marks it authenticated
	require.NoError(t, store.SetToken(ctx, "sid-1", "bearer-abc"))

	token, err := store.GetToken(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "bearer-abc", token)

	state, err := store.GetState(ctx, "sid-1")
	require.NoError(t, err)
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, "bearer-abc", state.AuthToken)

	// ClearToken removes both token and flag
	require.NoError(t, store.ClearToken(ctx, "sid-1"))

	_, err = store.GetToken(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	state, err = store.GetState(ctx, "sid-1")
	require.NoError(t, err)
	assert.False(t, state.IsAuthenticated)
	assert.Empty(t, state.AuthToken)
}

func TestMemoryStoreClearTokenKeepsNavigationState(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.SetToken(ctx, "sid-1", "bearer-abc"))
	require.NoError(t, store.SetRedirectAfterLogin(ctx, "sid-1", "/meetings/42"))
	require.NoError(t, store.SetJoinIntent(ctx, "sid-1", JoinIntent{Token: "invite-tok", AutoJoin: true}))

	require.NoError(t, store.ClearToken(ctx, "sid-1"))

	state, err := store.GetState(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "/meetings/42", state.RedirectAfterLogin)
	assert.Equal(t, "invite-tok", state.PendingJoinToken)
	assert.True(t, state.ShouldAutoJoin)
}

func TestMemoryStoreSetEmptyTokenClears(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.SetToken(ctx, "sid-1", "bearer-abc"))
	require.NoError(t, store.SetToken(ctx, "sid-1", ""))

	state, err := store.GetState(ctx, "sid-1")
	require.NoError(t, err)
	assert.False(t, state.IsAuthenticated)
	assert.Empty(t, state.AuthToken)
}

func TestMemoryStoreConsumeRedirectOnce(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.SetPendingRedirect(ctx, "sid-1", "/dashboard"))

	target, err := store.ConsumePendingRedirect(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", target)

	// Second consume returns nothing
	target, err = store.ConsumePendingRedirect(ctx, "sid-1")
	require.NoError(t, err)
	assert.Empty(t, target)

	// Consuming for an unknown session is not an error
	target, err = store.ConsumePendingRedirect(ctx, "sid-unknown")
	require.NoError(t, err)
	assert.Empty(t, target)
}

func TestMemoryStoreConsumeJoinIntentOnce(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.SetJoinIntent(ctx, "sid-1", JoinIntent{Token: "invite-tok", AutoJoin: true}))

	intent, err := store.ConsumeJoinIntent(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, intent)
	assert.Equal(t, "invite-tok", intent.Token)
	assert.True(t, intent.AutoJoin)

	intent, err = store.ConsumeJoinIntent(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, intent)
}

func TestMemoryStoreClearJoinIntent(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.SetJoinIntent(ctx, "sid-1", JoinIntent{Token: "invite-tok"}))
	require.NoError(t, store.ClearJoinIntent(ctx, "sid-1"))

	intent, err := store.ConsumeJoinIntent(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, intent)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.SetToken(ctx, "sid-1", "bearer-abc"))
	time.Sleep(80 * time.Millisecond)

	_, err := store.GetState(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Already lazily dropped, cleanup finds nothing left
	count, err := store.CleanupExpiredStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryStoreCleanup(t *testing.T) {
	store := NewMemoryStore(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.SetToken(ctx, "old-1", "t1"))
	require.NoError(t, store.SetToken(ctx, "old-2", "t2"))
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, store.SetToken(ctx, "fresh", "t3"))

	count, err := store.CleanupExpiredStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	states, err := store.ListStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "fresh", states[0].SID)
}

func TestMemoryStoreEnsureState(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	state, err := store.EnsureState(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "sid-1", state.SID)
	assert.False(t, state.IsAuthenticated)
	assert.False(t, state.CreatedAt.IsZero())

	// Idempotent, keeps creation time
	again, err := store.EnsureState(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, state.CreatedAt, again.CreatedAt)
}

func TestMemoryStoreDeleteState(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.SetToken(ctx, "sid-1", "bearer-abc"))
	require.NoError(t, store.DeleteState(ctx, "sid-1"))

	_, err := store.GetState(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
