package service

import (
	"context"
	"sync"
	"testing"

	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
	"github.com/remsfal/remsfal-backend-sub003/internal/policy"
	"github.com/remsfal/remsfal-backend-sub003/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionService() (SessionService, *repository.MemoryMessageRepository) {
	messages := repository.NewMemoryMessageRepository()
	svc := NewSessionService(repository.NewMemorySessionRepository(), messages, nil, 0)
	return svc, messages
}

func TestCreateSession_CreatorIsInitiator(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "p1", "i1", "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.SessionID)
	assert.Equal(t, map[string]domain.ParticipantRole{"u1": domain.RoleInitiator}, session.Participants)

	got, err := svc.GetSession(ctx, "p1", "i1", session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleInitiator, got.Participants["u1"])
}

func TestGetSession_NotFound(t *testing.T) {
	svc, _ := newTestSessionService()

	_, err := svc.GetSession(context.Background(), "p1", "i1", "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAddParticipant(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "p1", "i1", "u1")
	require.NoError(t, err)

	require.NoError(t, svc.AddParticipant(ctx, "p1", "i1", session.SessionID, "u2", domain.RoleObserver))

	participants, err := svc.GetParticipants(ctx, "p1", "i1", session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleObserver, participants["u2"])
}

func TestAddParticipant_Duplicate(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "p1", "i1", "u1")
	require.NoError(t, err)

	err = svc.AddParticipant(ctx, "p1", "i1", session.SessionID, "u1", domain.RoleObserver)
	assert.ErrorIs(t, err, policy.ErrAlreadyParticipant)
}

func TestAddParticipant_SecondInitiatorRejected(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "p1", "i1", "u1")
	require.NoError(t, err)

	err = svc.AddParticipant(ctx, "p1", "i1", session.SessionID, "u2", domain.RoleInitiator)
	assert.ErrorIs(t, err, policy.ErrDuplicateInitiator)

	// The failed add must leave the participant map untouched.
	participants, err := svc.GetParticipants(ctx, "p1", "i1", session.SessionID)
	require.NoError(t, err)
	assert.Len(t, participants, 1)
}

func TestAddParticipant_InvalidRole(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "p1", "i1", "u1")
	require.NoError(t, err)

	err = svc.AddParticipant(ctx, "p1", "i1", session.SessionID, "u2", "SUPERVISOR")
	assert.ErrorIs(t, err, policy.ErrInvalidRole)

	participants, err := svc.GetParticipants(ctx, "p1", "i1", session.SessionID)
	require.NoError(t, err)
	assert.Len(t, participants, 1)
}

func TestChangeParticipantRole(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "p1", "i1", "u1")
	require.NoError(t, err)

	// u2 joins as OBSERVER, then is promoted to HANDLER.
	require.NoError(t, svc.AddParticipant(ctx, "p1", "i1", session.SessionID, "u2", domain.RoleObserver))
	require.NoError(t, svc.ChangeParticipantRole(ctx, "p1", "i1", session.SessionID, "u2", domain.RoleHandler))

	participants, err := svc.GetParticipants(ctx, "p1", "i1", session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHandler, participants["u2"])
}

func TestChangeParticipantRole_AbsentUser(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "p1", "i1", "u1")
	require.NoError(t, err)

	err = svc.ChangeParticipantRole(ctx, "p1", "i1", session.SessionID, "ghost", domain.RoleHandler)
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestChangeParticipantRole_SecondInitiatorRejected(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "p1", "i1", "u1")
	require.NoError(t, err)
	require.NoError(t, svc.AddParticipant(ctx, "p1", "i1", session.SessionID, "u2", domain.RoleHandler))

	err = svc.ChangeParticipantRole(ctx, "p1", "i1", session.SessionID, "u2", domain.RoleInitiator)
	assert.ErrorIs(t, err, policy.ErrDuplicateInitiator)
}

func TestRemoveParticipant(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "p1", "i1", "u1")
	require.NoError(t, err)
	require.NoError(t, svc.AddParticipant(ctx, "p1", "i1", session.SessionID, "u2", domain.RoleObserver))

	require.NoError(t, svc.RemoveParticipant(ctx, "p1", "i1", session.SessionID, "u2"))

	err = svc.RemoveParticipant(ctx, "p1", "i1", session.SessionID, "u2")
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestDeleteSession_Idempotent(t *testing.T) {
	svc, messages := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "p1", "i1", "u1")
	require.NoError(t, err)

	require.NoError(t, messages.Insert(ctx, &domain.ChatMessage{
		SessionID:   session.SessionID,
		MessageID:   "m1",
		SenderID:    "u1",
		ContentType: domain.ContentTypeText,
		Content:     "hello",
	}))

	require.NoError(t, svc.DeleteSession(ctx, "p1", "i1", session.SessionID))
	// Deleting again must succeed.
	require.NoError(t, svc.DeleteSession(ctx, "p1", "i1", session.SessionID))

	_, err = svc.GetSession(ctx, "p1", "i1", session.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	remaining, err := messages.ListBySession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

// TestAddParticipant_ConcurrentJoins drives two joins through the
// read-validate-swap path at once and checks that neither update is lost.
func TestAddParticipant_ConcurrentJoins(t *testing.T) {
	svc, _ := newTestSessionService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "p1", "i1", "u1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []string{"u2", "u3"} {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			errs[i] = svc.AddParticipant(ctx, "p1", "i1", session.SessionID, userID, domain.RoleObserver)
		}(i, userID)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	participants, err := svc.GetParticipants(ctx, "p1", "i1", session.SessionID)
	require.NoError(t, err)
	assert.Len(t, participants, 3)
	assert.Contains(t, participants, "u2")
	assert.Contains(t, participants, "u3")
}
