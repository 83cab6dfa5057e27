package conversations

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/retention-intel/server/internal/agent/model"
	logx "github.com/retention-intel/server/pkg/logger"
)

// Recorder turns the steps of a chat turn into audit events and keeps the
// message transcript readable through the conversation repository.
type Recorder struct {
	sink  model.EventSink
	repo  model.ConversationRepository
	newID func() string
	now   func() time.Time
}

type RecorderOption func(*Recorder)

// WithIDGenerator overrides the event id source.
func WithIDGenerator(fn func() string) RecorderOption {
	return func(r *Recorder) { r.newID = fn }
}

// WithClock overrides the event timestamp source.
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = fn }
}

// NewRecorder builds a recorder. Either dependency may be nil; recording
// then becomes a no-op and transcripts are empty.
func NewRecorder(sink model.EventSink, repo model.ConversationRepository, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		sink:  sink,
		repo:  repo,
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewConversationID returns a fresh conversation id.
func (r *Recorder) NewConversationID() string {
	return r.newID()
}

// RecordRedaction records which PII labels were replaced.
func (r *Recorder) RecordRedaction(ctx context.Context, conversationID string, redactions map[string]int, originalLength int) {
	r.emit(ctx, model.Event{
		ConversationID: conversationID,
		Type:           model.EventPIIRedaction,
		Payload: map[string]any{
			"redactions":      redactions,
			"original_length": originalLength,
		},
	})
}

// RecordBlock records a guardrail block with its findings.
func (r *Recorder) RecordBlock(ctx context.Context, conversationID string, findings map[string][]string) {
	r.emit(ctx, model.Event{
		ConversationID: conversationID,
		Type:           model.EventGuardrailBlock,
		Payload:        map[string]any{"findings": findings},
	})
}

// RecordUserMessage records the redacted user message.
func (r *Recorder) RecordUserMessage(ctx context.Context, conversationID, content, customerID string) {
	r.emit(ctx, model.Event{
		ConversationID: conversationID,
		Type:           model.EventUserMessage,
		Role:           model.RoleUser,
		Content:        content,
		CustomerID:     customerID,
	})
}

// RecordAssistantMessage records the final response.
func (r *Recorder) RecordAssistantMessage(ctx context.Context, conversationID, content, customerID string) {
	r.emit(ctx, model.Event{
		ConversationID: conversationID,
		Type:           model.EventAssistantMessage,
		Role:           model.RoleAssistant,
		Content:        content,
		CustomerID:     customerID,
	})
}

// emit never fails the turn; sink errors are logged.
func (r *Recorder) emit(ctx context.Context, ev model.Event) {
	if r.sink == nil {
		return
	}
	ev.ID = r.newID()
	ev.CreatedAt = r.now()
	if err := r.sink.Record(ctx, ev); err != nil {
		logx.Error().Err(err).
			Str("conversation_id", ev.ConversationID).
			Str("event_type", string(ev.Type)).
			Msg("failed to record event")
	}
}

// Transcript returns the last maxTurns messages of a conversation; a
// non-positive maxTurns returns everything.
func (r *Recorder) Transcript(ctx context.Context, conversationID string, maxTurns int) ([]*schema.Message, error) {
	if r.repo == nil {
		return []*schema.Message{}, nil
	}
	history, err := r.repo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	msgs := make([]*schema.Message, 0, len(history.Messages))
	for _, m := range history.Messages {
		if m == nil || strings.TrimSpace(m.Content) == "" {
			continue
		}
		msgs = append(msgs, m)
	}
	if maxTurns <= 0 {
		return msgs, nil
	}
	return trimTail(msgs, maxTurns), nil
}

// ClearTranscript drops the stored messages of a conversation. Audit events
// already emitted are kept.
func (r *Recorder) ClearTranscript(ctx context.Context, conversationID string) error {
	if r.repo == nil {
		return nil
	}
	return r.repo.ClearHistory(ctx, conversationID)
}

func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if len(messages) <= maxTurns {
		return messages
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
