package mq

import "context"

// OcrRequest is emitted on the ocr-request topic after a file message is
// persisted. The OCR workers locate the object via bucket + file name and
// correlate the result back through session and message IDs.
type OcrRequest struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id"`
	Bucket    string `json:"bucket"`
	FileName  string `json:"file_name"`
}

// OcrResult arrives on the ocr-result topic. Delivery is at-least-once with
// no ordering guarantee across partitions; duplicates for the same message
// are applied last-writer-wins.
type OcrResult struct {
	SessionID     string `json:"session_id"`
	MessageID     string `json:"message_id"`
	ExtractedText string `json:"extracted_text"`
}

// OcrRequestPublisher abstracts the Kafka producer for OCR requests.
type OcrRequestPublisher interface {
	PublishOcrRequest(ctx context.Context, req *OcrRequest) error
	Close() error
}

// OcrResultHandler is the business-logic callback injected into the consumer.
type OcrResultHandler interface {
	HandleOcrResult(ctx context.Context, result *OcrResult) error
}

// OcrResultConsumer abstracts the Kafka consumer for OCR results.
type OcrResultConsumer interface {
	Start(ctx context.Context) error
	Close() error
}
