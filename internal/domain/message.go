package domain

import "time"

// ContentType distinguishes text messages from file messages.
type ContentType string

const (
	ContentTypeText ContentType = "TEXT"
	ContentTypeFile ContentType = "FILE"
)

// MaxMessageLength is the maximum message content length in characters.
const MaxMessageLength = 8000

// ChatMessage is a single entry in a session's message log. Exactly one of
// Content and URL is non-empty, matching ContentType: TEXT messages carry
// Content, FILE messages carry the stored object's key in URL. The content
// of a FILE message is filled in later by the OCR pipeline; the URL is
// preserved.
type ChatMessage struct {
	SessionID   string      `json:"session_id"`
	MessageID   string      `json:"message_id"`
	SenderID    string      `json:"sender_id"`
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content,omitempty"`
	URL         string      `json:"url,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// SendMessageRequest is the body for sending a text message.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateMessageRequest is the body for editing a text message.
type UpdateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// MessageResponse is a chat message in API responses, with a resolved
// download URL for file messages.
type MessageResponse struct {
	ChatMessage
	FileURL string `json:"file_url,omitempty"`
}

// ChatLogResponse is the rendered message log of a session, ordered by
// creation time.
type ChatLogResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []MessageResponse `json:"messages"`
}
