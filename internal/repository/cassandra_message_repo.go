package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"
	"github.com/remsfal/remsfal-backend-sub003/internal/cassandra"
	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
)

// CassandraMessageRepository persists chat messages to the chat_messages
// table:
//
//	chat_messages(session_id, message_id, sender_id, content_type,
//	              content, url, created_at,
//	              PRIMARY KEY ((session_id), message_id))
type CassandraMessageRepository struct {
	session *gocql.Session
}

// NewCassandraMessageRepository creates a new CassandraMessageRepository.
func NewCassandraMessageRepository(client *cassandra.Client) *CassandraMessageRepository {
	return &CassandraMessageRepository{session: client.Session()}
}

func (r *CassandraMessageRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (
			session_id, message_id, sender_id, content_type, content, url, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`

	err := r.session.Query(query,
		msg.SessionID,
		msg.MessageID,
		msg.SenderID,
		string(msg.ContentType),
		msg.Content,
		msg.URL,
		msg.CreatedAt,
	).WithContext(ctx).Exec()

	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}

	return nil
}

func (r *CassandraMessageRepository) Get(ctx context.Context, sessionID, messageID string) (*domain.ChatMessage, error) {
	query := `
		SELECT sender_id, content_type, content, url, created_at
		FROM chat_messages
		WHERE session_id = ? AND message_id = ?`

	var (
		senderID    string
		contentType string
		content     string
		url         string
		createdAt   time.Time
	)

	err := r.session.Query(query, sessionID, messageID).
		WithContext(ctx).
		Scan(&senderID, &contentType, &content, &url, &createdAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get chat message: %w", err)
	}

	return &domain.ChatMessage{
		SessionID:   sessionID,
		MessageID:   messageID,
		SenderID:    senderID,
		ContentType: domain.ContentType(contentType),
		Content:     content,
		URL:         url,
		CreatedAt:   createdAt,
	}, nil
}

func (r *CassandraMessageRepository) UpdateContent(ctx context.Context, sessionID, messageID, content string) error {
	query := `UPDATE chat_messages SET content = ? WHERE session_id = ? AND message_id = ?`

	if err := r.session.Query(query, content, sessionID, messageID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to update message content: %w", err)
	}

	return nil
}

func (r *CassandraMessageRepository) Delete(ctx context.Context, sessionID, messageID string) error {
	query := `DELETE FROM chat_messages WHERE session_id = ? AND message_id = ?`

	if err := r.session.Query(query, sessionID, messageID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to delete chat message: %w", err)
	}

	return nil
}

func (r *CassandraMessageRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	query := `DELETE FROM chat_messages WHERE session_id = ?`

	if err := r.session.Query(query, sessionID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to delete session messages: %w", err)
	}

	return nil
}

func (r *CassandraMessageRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	query := `
		SELECT message_id, sender_id, content_type, content, url, created_at
		FROM chat_messages
		WHERE session_id = ?`

	iter := r.session.Query(query, sessionID).WithContext(ctx).Iter()

	var messages []domain.ChatMessage
	var (
		messageID   string
		senderID    string
		contentType string
		content     string
		url         string
		createdAt   time.Time
	)

	for iter.Scan(&messageID, &senderID, &contentType, &content, &url, &createdAt) {
		messages = append(messages, domain.ChatMessage{
			SessionID:   sessionID,
			MessageID:   messageID,
			SenderID:    senderID,
			ContentType: domain.ContentType(contentType),
			Content:     content,
			URL:         url,
			CreatedAt:   createdAt,
		})
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	// Rows cluster by message_id; display order is creation time. Ties
	// between concurrent sends stay in whatever order the sort leaves them.
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	return messages, nil
}
