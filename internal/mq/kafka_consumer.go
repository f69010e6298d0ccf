package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	pkglog "github.com/remsfal/remsfal-backend-sub003/pkg/log"
)

// KafkaOcrConsumer implements OcrResultConsumer using confluent-kafka-go.
type KafkaOcrConsumer struct {
	consumer *kafka.Consumer
	topic    string
	handler  OcrResultHandler
	doneCh   chan struct{}
}

// NewKafkaOcrConsumer creates a Kafka consumer for OCR results.
func NewKafkaOcrConsumer(brokers, topic, groupID string, handler OcrResultHandler) (*KafkaOcrConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &KafkaOcrConsumer{
		consumer: c,
		topic:    topic,
		handler:  handler,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins consuming messages from Kafka in a background goroutine.
func (kc *KafkaOcrConsumer) Start(ctx context.Context) error {
	if err := kc.consumer.Subscribe(kc.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", kc.topic, err)
	}

	l := pkglog.L()
	l.Info().Str("topic", kc.topic).Msg("ocr result consumer started")

	go kc.consumeLoop(ctx)

	return nil
}

func (kc *KafkaOcrConsumer) consumeLoop(ctx context.Context) {
	l := pkglog.L()
	defer close(kc.doneCh)

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("ocr result consumer shutting down")
			return
		default:
			msg, err := kc.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				if err.(kafka.Error).Code() == kafka.ErrTimedOut {
					continue
				}
				l.Error().Err(err).Msg("kafka consumer error")
				continue
			}
			// Detached context so an in-flight result still lands after
			// the shutdown signal.
			kc.processMessage(context.WithoutCancel(ctx), msg)
		}
	}
}

func (kc *KafkaOcrConsumer) processMessage(ctx context.Context, msg *kafka.Message) {
	l := pkglog.L()

	var result OcrResult
	if err := json.Unmarshal(msg.Value, &result); err != nil {
		l.Error().Err(err).Msg("failed to unmarshal ocr result")
		return
	}

	if result.SessionID == "" || result.MessageID == "" {
		l.Warn().Msg("dropping ocr result without correlation ids")
		return
	}

	if err := kc.handler.HandleOcrResult(ctx, &result); err != nil {
		l.Error().Err(err).
			Str(pkglog.FieldSessionID, result.SessionID).
			Str(pkglog.FieldMessageID, result.MessageID).
			Msg("failed to handle ocr result")
	}
}

// Close waits for the consume loop to drain, then closes the Kafka client.
// ctx must already be cancelled before calling Close.
func (kc *KafkaOcrConsumer) Close() error {
	<-kc.doneCh // wait for in-flight processMessage to complete
	if err := kc.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}
