package repository

import (
	"context"
	"errors"
	"time"

	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
)

var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrMessageNotFound = errors.New("chat message not found")

	// ErrVersionConflict is returned by CompareAndSwapParticipants when
	// another writer updated the participant map since it was read. The
	// caller re-reads and retries.
	ErrVersionConflict = errors.New("participant map was modified concurrently")
)

// SessionRepository owns chat_sessions rows. The participant map is stored
// as a single map column guarded by a version counter: every write goes
// through CompareAndSwapParticipants, which only applies when the stored
// version still matches the one the caller read. This closes the lost-update
// window of a plain read-modify-write sequence.
type SessionRepository interface {
	// Insert stores a new session with version 0.
	Insert(ctx context.Context, session *domain.ChatSession) error

	// Get returns the session and the current participant-map version.
	// Returns ErrSessionNotFound if no row exists for the key.
	Get(ctx context.Context, projectID, issueID, sessionID string) (*domain.ChatSession, int64, error)

	// Delete removes a session. Deleting an absent key is not an error.
	Delete(ctx context.Context, projectID, issueID, sessionID string) error

	// CompareAndSwapParticipants replaces the participant map if the stored
	// version equals expectedVersion, bumping the version and modified_at.
	// Returns ErrVersionConflict when the version moved on.
	CompareAndSwapParticipants(
		ctx context.Context,
		projectID, issueID, sessionID string,
		participants map[string]domain.ParticipantRole,
		modifiedAt time.Time,
		expectedVersion int64,
	) error
}

// MessageRepository owns chat_messages rows keyed by (session_id, message_id).
type MessageRepository interface {
	// Insert stores a new message.
	Insert(ctx context.Context, msg *domain.ChatMessage) error

	// Get returns a message or ErrMessageNotFound.
	Get(ctx context.Context, sessionID, messageID string) (*domain.ChatMessage, error)

	// UpdateContent overwrites the content column unconditionally. The url
	// column is untouched, so OCR enrichment of a file message preserves
	// the object reference.
	UpdateContent(ctx context.Context, sessionID, messageID, content string) error

	// Delete removes a message. Deleting an absent key is not an error.
	Delete(ctx context.Context, sessionID, messageID string) error

	// DeleteBySession removes all messages of a session (session delete
	// cascade).
	DeleteBySession(ctx context.Context, sessionID string) error

	// ListBySession returns all messages of a session ordered by creation
	// time. Concurrent sends may carry equal timestamps; their relative
	// order is unspecified.
	ListBySession(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
}
