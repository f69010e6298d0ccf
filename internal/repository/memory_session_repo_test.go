package repository

import (
	"context"
	"testing"
	"time"

	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() *domain.ChatSession {
	now := time.Now().UTC()
	return &domain.ChatSession{
		ProjectID: "p1",
		IssueID:   "i1",
		SessionID: "s1",
		Participants: map[string]domain.ParticipantRole{
			"u1": domain.RoleInitiator,
		},
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

func TestMemorySessionRepository_InsertAndGet(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newTestSession()))

	session, version, err := repo.Get(ctx, "p1", "i1", "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
	assert.Equal(t, domain.RoleInitiator, session.Participants["u1"])

	_, _, err = repo.Get(ctx, "p1", "i1", "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionRepository_GetReturnsCopy(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newTestSession()))

	session, _, err := repo.Get(ctx, "p1", "i1", "s1")
	require.NoError(t, err)

	// Mutating the returned map must not leak into the store.
	session.Participants["u2"] = domain.RoleObserver

	again, _, err := repo.Get(ctx, "p1", "i1", "s1")
	require.NoError(t, err)
	assert.Len(t, again.Participants, 1)
}

func TestMemorySessionRepository_CompareAndSwap(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newTestSession()))

	_, version, err := repo.Get(ctx, "p1", "i1", "s1")
	require.NoError(t, err)

	updated := map[string]domain.ParticipantRole{
		"u1": domain.RoleInitiator,
		"u2": domain.RoleObserver,
	}
	require.NoError(t, repo.CompareAndSwapParticipants(ctx, "p1", "i1", "s1", updated, time.Now().UTC(), version))

	// A second swap against the stale version must conflict.
	err = repo.CompareAndSwapParticipants(ctx, "p1", "i1", "s1", updated, time.Now().UTC(), version)
	assert.ErrorIs(t, err, ErrVersionConflict)

	session, newVersion, err := repo.Get(ctx, "p1", "i1", "s1")
	require.NoError(t, err)
	assert.Equal(t, version+1, newVersion)
	assert.Len(t, session.Participants, 2)
}

func TestMemorySessionRepository_CompareAndSwapMissingSession(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	err := repo.CompareAndSwapParticipants(ctx, "p1", "i1", "gone", nil, time.Now().UTC(), 0)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestMemorySessionRepository_DeleteIsIdempotent(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newTestSession()))
	require.NoError(t, repo.Delete(ctx, "p1", "i1", "s1"))
	require.NoError(t, repo.Delete(ctx, "p1", "i1", "s1"))

	_, _, err := repo.Get(ctx, "p1", "i1", "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
