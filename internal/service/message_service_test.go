package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
	"github.com/remsfal/remsfal-backend-sub003/internal/mq"
	"github.com/remsfal/remsfal-backend-sub003/internal/repository"
	"github.com/remsfal/remsfal-backend-sub003/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePublisher records OCR requests instead of producing to Kafka.
type fakePublisher struct {
	mu       sync.Mutex
	requests []*mq.OcrRequest
}

func (p *fakePublisher) PublishOcrRequest(ctx context.Context, req *mq.OcrRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) published() []*mq.OcrRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*mq.OcrRequest(nil), p.requests...)
}

func newTestMessageService(t *testing.T) (MessageService, *fakePublisher) {
	t.Helper()

	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	publisher := &fakePublisher{}
	svc := NewMessageService(
		repository.NewMemoryMessageRepository(),
		NewFileGateway(store, time.Minute),
		publisher,
	)
	return svc, publisher
}

func TestSendText(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()

	msg, err := svc.SendText(ctx, "s1", "u1", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.MessageID)
	assert.Equal(t, domain.ContentTypeText, msg.ContentType)

	got, err := svc.GetMessage(ctx, "s1", msg.MessageID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "u1", got.SenderID)
}

func TestSendText_RejectsBlankContent(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()

	_, err := svc.SendText(ctx, "s1", "u1", "   \t\n")
	assert.ErrorIs(t, err, ErrBlankContent)
}

func TestSendText_RejectsOversizedContent(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()

	// Exactly at the limit is fine.
	_, err := svc.SendText(ctx, "s1", "u1", strings.Repeat("a", domain.MaxMessageLength))
	require.NoError(t, err)

	_, err = svc.SendText(ctx, "s1", "u1", strings.Repeat("a", domain.MaxMessageLength+1))
	assert.ErrorIs(t, err, ErrContentTooLong)
}

func TestSendFile_PublishesOcrRequest(t *testing.T) {
	svc, publisher := newTestMessageService(t)
	ctx := context.Background()

	content := "scanned invoice"
	msg, err := svc.SendFile(ctx, "s1", "u1", "invoice.pdf", "application/pdf", strings.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, domain.ContentTypeFile, msg.ContentType)
	assert.Equal(t, "invoice.pdf", msg.URL)
	assert.Empty(t, msg.Content)

	requests := publisher.published()
	require.Len(t, requests, 1)
	assert.Equal(t, "s1", requests[0].SessionID)
	assert.Equal(t, msg.MessageID, requests[0].MessageID)
	assert.Equal(t, "invoice.pdf", requests[0].FileName)
}

func TestHandleOcrResult_EnrichesFileMessage(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()

	content := "scanned invoice"
	msg, err := svc.SendFile(ctx, "s1", "u1", "invoice.pdf", "application/pdf", strings.NewReader(content), int64(len(content)))
	require.NoError(t, err)

	handler, ok := svc.(mq.OcrResultHandler)
	require.True(t, ok)

	require.NoError(t, handler.HandleOcrResult(ctx, &mq.OcrResult{
		SessionID:     "s1",
		MessageID:     msg.MessageID,
		ExtractedText: "Total due: 42.00 EUR",
	}))

	got, err := svc.GetMessage(ctx, "s1", msg.MessageID)
	require.NoError(t, err)
	assert.Equal(t, "Total due: 42.00 EUR", got.Content)
	// The file reference survives enrichment.
	assert.Equal(t, "invoice.pdf", got.URL)
	assert.Equal(t, domain.ContentTypeFile, got.ContentType)
}

func TestHandleOcrResult_LastWriterWins(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()

	content := "doc"
	msg, err := svc.SendFile(ctx, "s1", "u1", "doc.pdf", "application/pdf", strings.NewReader(content), int64(len(content)))
	require.NoError(t, err)

	handler := svc.(mq.OcrResultHandler)
	require.NoError(t, handler.HandleOcrResult(ctx, &mq.OcrResult{SessionID: "s1", MessageID: msg.MessageID, ExtractedText: "first"}))
	require.NoError(t, handler.HandleOcrResult(ctx, &mq.OcrResult{SessionID: "s1", MessageID: msg.MessageID, ExtractedText: "second"}))

	got, err := svc.GetMessage(ctx, "s1", msg.MessageID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)
}

func TestHandleOcrResult_DropsResultForDeletedMessage(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()

	handler := svc.(mq.OcrResultHandler)
	err := handler.HandleOcrResult(ctx, &mq.OcrResult{
		SessionID:     "s1",
		MessageID:     "gone",
		ExtractedText: "text",
	})
	assert.NoError(t, err)
}

func TestUpdateTextMessage(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()

	msg, err := svc.SendText(ctx, "s1", "u1", "typo")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateTextMessage(ctx, "s1", msg.MessageID, "u1", "fixed"))

	got, err := svc.GetMessage(ctx, "s1", msg.MessageID)
	require.NoError(t, err)
	assert.Equal(t, "fixed", got.Content)
}

func TestUpdateTextMessage_OnlySenderMayEdit(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()

	msg, err := svc.SendText(ctx, "s1", "u1", "hello")
	require.NoError(t, err)

	err = svc.UpdateTextMessage(ctx, "s1", msg.MessageID, "u2", "hijacked")
	assert.ErrorIs(t, err, ErrNotMessageSender)
}

func TestUpdateTextMessage_RejectsFileMessages(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()

	content := "doc"
	msg, err := svc.SendFile(ctx, "s1", "u1", "doc.pdf", "application/pdf", strings.NewReader(content), int64(len(content)))
	require.NoError(t, err)

	err = svc.UpdateTextMessage(ctx, "s1", msg.MessageID, "u1", "new content")
	assert.ErrorIs(t, err, ErrNotTextMessage)
}

func TestDeleteMessage_Idempotent(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()

	msg, err := svc.SendText(ctx, "s1", "u1", "hello")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMessage(ctx, "s1", msg.MessageID))
	require.NoError(t, svc.DeleteMessage(ctx, "s1", msg.MessageID))

	_, err = svc.GetMessage(ctx, "s1", msg.MessageID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestListMessages_OrderedByCreation(t *testing.T) {
	svc, _ := newTestMessageService(t)
	ctx := context.Background()

	first, err := svc.SendText(ctx, "s1", "u1", "first")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := svc.SendText(ctx, "s1", "u2", "second")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	third, err := svc.SendText(ctx, "s1", "u1", "third")
	require.NoError(t, err)

	messages, err := svc.ListMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, first.MessageID, messages[0].MessageID)
	assert.Equal(t, second.MessageID, messages[1].MessageID)
	assert.Equal(t, third.MessageID, messages[2].MessageID)
}
