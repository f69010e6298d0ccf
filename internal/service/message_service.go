package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
	"github.com/remsfal/remsfal-backend-sub003/internal/mq"
	"github.com/remsfal/remsfal-backend-sub003/internal/repository"
	"github.com/remsfal/remsfal-backend-sub003/pkg/log"
)

var (
	ErrMessageNotFound  = errors.New("chat message not found")
	ErrBlankContent     = errors.New("message content must not be blank")
	ErrContentTooLong   = errors.New("message content exceeds maximum length")
	ErrNotMessageSender = errors.New("only the sender may edit a message")
	ErrNotTextMessage   = errors.New("only text messages can be edited")
)

type messageServiceImpl struct {
	repo      repository.MessageRepository
	files     FileGateway
	publisher mq.OcrRequestPublisher
}

// NewMessageService creates a new message service. publisher may be nil to
// disable OCR enrichment (file messages then simply keep an empty content).
func NewMessageService(
	repo repository.MessageRepository,
	files FileGateway,
	publisher mq.OcrRequestPublisher,
) MessageService {
	return &messageServiceImpl{
		repo:      repo,
		files:     files,
		publisher: publisher,
	}
}

// SendText appends a text message to the session's log.
func (s *messageServiceImpl) SendText(ctx context.Context, sessionID, senderID, content string) (*domain.ChatMessage, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}

	msg := &domain.ChatMessage{
		SessionID:   sessionID,
		MessageID:   uuid.New().String(),
		SenderID:    senderID,
		ContentType: domain.ContentTypeText,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// SendFile stores the uploaded content, appends a file message referencing
// it, and asks the OCR pipeline to extract its text. The message carries an
// empty content until the OCR result arrives; enrichment is best-effort and
// never blocks message delivery.
func (s *messageServiceImpl) SendFile(ctx context.Context, sessionID, senderID, fileName, contentType string, r io.Reader, size int64) (*domain.ChatMessage, error) {
	ref, err := s.files.Upload(ctx, r, fileName, contentType, size)
	if err != nil {
		return nil, err
	}

	msg := &domain.ChatMessage{
		SessionID:   sessionID,
		MessageID:   uuid.New().String(),
		SenderID:    senderID,
		ContentType: domain.ContentTypeFile,
		URL:         ref.Key,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, msg); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		req := &mq.OcrRequest{
			SessionID: sessionID,
			MessageID: msg.MessageID,
			SenderID:  senderID,
			Bucket:    ref.Bucket,
			FileName:  ref.Key,
		}
		// Fire-and-forget: a lost request only means the message stays
		// unenriched.
		if err := s.publisher.PublishOcrRequest(ctx, req); err != nil {
			logger := log.Ctx(ctx)
			logger.Warn().Err(err).
				Str(log.FieldSessionID, sessionID).
				Str(log.FieldMessageID, msg.MessageID).
				Msg("failed to publish ocr request")
		}
	}

	return msg, nil
}

func (s *messageServiceImpl) GetMessage(ctx context.Context, sessionID, messageID string) (*domain.ChatMessage, error) {
	msg, err := s.repo.Get(ctx, sessionID, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

// UpdateTextMessage edits a text message's content. Only the original
// sender may edit, and only TEXT messages are editable through this path;
// the store itself overwrites unconditionally, so these checks live here.
func (s *messageServiceImpl) UpdateTextMessage(ctx context.Context, sessionID, messageID, senderID, content string) error {
	if err := validateContent(content); err != nil {
		return err
	}

	msg, err := s.GetMessage(ctx, sessionID, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != senderID {
		return ErrNotMessageSender
	}
	if msg.ContentType != domain.ContentTypeText {
		return ErrNotTextMessage
	}

	return s.repo.UpdateContent(ctx, sessionID, messageID, content)
}

// DeleteMessage removes a message; deleting an absent id succeeds.
func (s *messageServiceImpl) DeleteMessage(ctx context.Context, sessionID, messageID string) error {
	return s.repo.Delete(ctx, sessionID, messageID)
}

func (s *messageServiceImpl) ListMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	return s.repo.ListBySession(ctx, sessionID)
}

// HandleOcrResult writes extracted text into the originating file message.
// Results are applied last-writer-wins; a result for a deleted message is
// dropped, which keeps at-least-once redelivery harmless.
func (s *messageServiceImpl) HandleOcrResult(ctx context.Context, result *mq.OcrResult) error {
	_, err := s.repo.Get(ctx, result.SessionID, result.MessageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			logger := log.Ctx(ctx)
			logger.Info().
				Str(log.FieldSessionID, result.SessionID).
				Str(log.FieldMessageID, result.MessageID).
				Msg("dropping ocr result for absent message")
			return nil
		}
		return err
	}

	if err := s.repo.UpdateContent(ctx, result.SessionID, result.MessageID, result.ExtractedText); err != nil {
		return err
	}

	logger := log.Ctx(ctx)
	logger.Info().
		Str(log.FieldSessionID, result.SessionID).
		Str(log.FieldMessageID, result.MessageID).
		Msg("applied ocr result")

	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrBlankContent
	}
	if utf8.RuneCountInString(content) > domain.MaxMessageLength {
		return ErrContentTooLong
	}
	return nil
}
