package service

import (
	"context"
	"io"

	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
)

// SessionService owns chat-session lifecycle and the participant-role map.
type SessionService interface {
	CreateSession(ctx context.Context, projectID, issueID, creatorID string) (*domain.ChatSession, error)
	GetSession(ctx context.Context, projectID, issueID, sessionID string) (*domain.ChatSession, error)
	DeleteSession(ctx context.Context, projectID, issueID, sessionID string) error

	GetParticipants(ctx context.Context, projectID, issueID, sessionID string) (map[string]domain.ParticipantRole, error)
	AddParticipant(ctx context.Context, projectID, issueID, sessionID, userID string, role domain.ParticipantRole) error
	ChangeParticipantRole(ctx context.Context, projectID, issueID, sessionID, userID string, newRole domain.ParticipantRole) error
	RemoveParticipant(ctx context.Context, projectID, issueID, sessionID, userID string) error
}

// MessageService owns the per-session message log and the OCR write-back.
type MessageService interface {
	SendText(ctx context.Context, sessionID, senderID, content string) (*domain.ChatMessage, error)
	SendFile(ctx context.Context, sessionID, senderID, fileName, contentType string, r io.Reader, size int64) (*domain.ChatMessage, error)
	GetMessage(ctx context.Context, sessionID, messageID string) (*domain.ChatMessage, error)
	UpdateTextMessage(ctx context.Context, sessionID, messageID, senderID, content string) error
	DeleteMessage(ctx context.Context, sessionID, messageID string) error
	ListMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
}

// ObjectRef identifies a stored object by its bucket and key.
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// FileGateway validates and stores uploaded binary content.
type FileGateway interface {
	Upload(ctx context.Context, r io.Reader, fileName, contentType string, size int64) (*ObjectRef, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error

	// FileURL resolves a stored object's key to a download URL.
	FileURL(ctx context.Context, key string) (string, error)
	Bucket() string
}

// PermissionChecker is the platform permission layer consulted before any
// session or message mutation.
type PermissionChecker interface {
	CheckWritePermissions(ctx context.Context, userID, issueID string) (projectID string, err error)
}
