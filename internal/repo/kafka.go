package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/retention-intel/server/internal/agent/model"
	errx "github.com/retention-intel/server/internal/core/error"
	logx "github.com/retention-intel/server/pkg/logger"
)

// MessageWriter is the subset of *kafka.Writer used by the sink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventSink publishes every event as JSON keyed by conversation id, so
// one conversation's events stay ordered within a partition.
type KafkaEventSink struct {
	w MessageWriter
}

func NewKafkaEventSink(w MessageWriter) *KafkaEventSink {
	return &KafkaEventSink{w: w}
}

func (s *KafkaEventSink) Record(ctx context.Context, ev model.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.ConversationID),
		Value: value,
		Time:  ev.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		logx.Error().Err(err).
			Str("conversation_id", ev.ConversationID).
			Str("event_type", string(ev.Type)).
			Msg("failed to publish event")
		return errx.WrapKafka(err)
	}
	return nil
}

func (s *KafkaEventSink) Close() error {
	return s.w.Close()
}

var _ model.EventSink = (*KafkaEventSink)(nil)
