package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/remsfal/remsfal-backend-sub003/internal/cassandra"
	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
)

// CassandraSessionRepository persists chat sessions to the chat_sessions
// table:
//
//	chat_sessions(project_id, issue_id, session_id,
//	              participants map<text,text>, version bigint,
//	              created_at, modified_at,
//	              PRIMARY KEY ((project_id), issue_id, session_id))
//
// Cassandra has no native transactions; the participant map lives in a
// single column, so concurrent read-modify-write sequences would silently
// lose updates. Writes therefore go through a lightweight transaction on
// the version column (IF version = ?).
type CassandraSessionRepository struct {
	session *gocql.Session
}

// NewCassandraSessionRepository creates a new CassandraSessionRepository.
func NewCassandraSessionRepository(client *cassandra.Client) *CassandraSessionRepository {
	return &CassandraSessionRepository{session: client.Session()}
}

func (r *CassandraSessionRepository) Insert(ctx context.Context, s *domain.ChatSession) error {
	query := `
		INSERT INTO chat_sessions (
			project_id, issue_id, session_id, participants, version, created_at, modified_at
		) VALUES (?, ?, ?, ?, 0, ?, ?)`

	err := r.session.Query(query,
		s.ProjectID,
		s.IssueID,
		s.SessionID,
		rolesToStrings(s.Participants),
		s.CreatedAt,
		s.ModifiedAt,
	).WithContext(ctx).Exec()

	if err != nil {
		return fmt.Errorf("failed to insert chat session: %w", err)
	}

	return nil
}

func (r *CassandraSessionRepository) Get(ctx context.Context, projectID, issueID, sessionID string) (*domain.ChatSession, int64, error) {
	query := `
		SELECT participants, version, created_at, modified_at
		FROM chat_sessions
		WHERE project_id = ? AND issue_id = ? AND session_id = ?`

	var (
		participants map[string]string
		version      int64
		createdAt    time.Time
		modifiedAt   time.Time
	)

	err := r.session.Query(query, projectID, issueID, sessionID).
		WithContext(ctx).
		Scan(&participants, &version, &createdAt, &modifiedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, 0, ErrSessionNotFound
		}
		return nil, 0, fmt.Errorf("failed to get chat session: %w", err)
	}

	return &domain.ChatSession{
		ProjectID:    projectID,
		IssueID:      issueID,
		SessionID:    sessionID,
		Participants: stringsToRoles(participants),
		CreatedAt:    createdAt,
		ModifiedAt:   modifiedAt,
	}, version, nil
}

func (r *CassandraSessionRepository) Delete(ctx context.Context, projectID, issueID, sessionID string) error {
	query := `DELETE FROM chat_sessions WHERE project_id = ? AND issue_id = ? AND session_id = ?`

	// Cassandra deletes write a tombstone whether or not the row exists,
	// which gives the idempotent delete semantics callers rely on.
	if err := r.session.Query(query, projectID, issueID, sessionID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to delete chat session: %w", err)
	}

	return nil
}

func (r *CassandraSessionRepository) CompareAndSwapParticipants(
	ctx context.Context,
	projectID, issueID, sessionID string,
	participants map[string]domain.ParticipantRole,
	modifiedAt time.Time,
	expectedVersion int64,
) error {
	query := `
		UPDATE chat_sessions
		SET participants = ?, version = ?, modified_at = ?
		WHERE project_id = ? AND issue_id = ? AND session_id = ?
		IF version = ?`

	var currentVersion int64
	applied, err := r.session.Query(query,
		rolesToStrings(participants),
		expectedVersion+1,
		modifiedAt,
		projectID,
		issueID,
		sessionID,
		expectedVersion,
	).WithContext(ctx).ScanCAS(&currentVersion)

	if err != nil {
		return fmt.Errorf("failed to update participants: %w", err)
	}

	if !applied {
		// Either another writer bumped the version or the row is gone;
		// the caller's retry re-reads and distinguishes the two.
		return ErrVersionConflict
	}

	return nil
}

func rolesToStrings(in map[string]domain.ParticipantRole) map[string]string {
	out := make(map[string]string, len(in))
	for id, role := range in {
		out[id] = string(role)
	}
	return out
}

func stringsToRoles(in map[string]string) map[string]domain.ParticipantRole {
	out := make(map[string]domain.ParticipantRole, len(in))
	for id, role := range in {
		out[id] = domain.ParticipantRole(role)
	}
	return out
}
