package repository

import (
	"context"
	"sync"
	"time"

	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
)

type sessionEntry struct {
	participants map[string]domain.ParticipantRole
	version      int64
	createdAt    time.Time
	modifiedAt   time.Time
}

// MemorySessionRepository is an in-memory SessionRepository for development
// and tests. It mirrors the Cassandra repository's compare-and-swap
// semantics on the participant map.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[sessionKey]*sessionEntry
}

type sessionKey struct {
	projectID string
	issueID   string
	sessionID string
}

// NewMemorySessionRepository creates an empty MemorySessionRepository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[sessionKey]*sessionEntry),
	}
}

func (r *MemorySessionRepository) Insert(ctx context.Context, s *domain.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionKey{s.ProjectID, s.IssueID, s.SessionID}] = &sessionEntry{
		participants: copyParticipants(s.Participants),
		version:      0,
		createdAt:    s.CreatedAt,
		modifiedAt:   s.ModifiedAt,
	}
	return nil
}

func (r *MemorySessionRepository) Get(ctx context.Context, projectID, issueID, sessionID string) (*domain.ChatSession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionKey{projectID, issueID, sessionID}]
	if !ok {
		return nil, 0, ErrSessionNotFound
	}

	return &domain.ChatSession{
		ProjectID:    projectID,
		IssueID:      issueID,
		SessionID:    sessionID,
		Participants: copyParticipants(entry.participants),
		CreatedAt:    entry.createdAt,
		ModifiedAt:   entry.modifiedAt,
	}, entry.version, nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, projectID, issueID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionKey{projectID, issueID, sessionID})
	return nil
}

func (r *MemorySessionRepository) CompareAndSwapParticipants(
	ctx context.Context,
	projectID, issueID, sessionID string,
	participants map[string]domain.ParticipantRole,
	modifiedAt time.Time,
	expectedVersion int64,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionKey{projectID, issueID, sessionID}]
	if !ok {
		return ErrVersionConflict
	}
	if entry.version != expectedVersion {
		return ErrVersionConflict
	}

	entry.participants = copyParticipants(participants)
	entry.version++
	entry.modifiedAt = modifiedAt
	return nil
}

func copyParticipants(in map[string]domain.ParticipantRole) map[string]domain.ParticipantRole {
	out := make(map[string]domain.ParticipantRole, len(in))
	for id, role := range in {
		out[id] = role
	}
	return out
}
