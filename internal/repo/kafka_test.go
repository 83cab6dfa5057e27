package repo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retention-intel/server/internal/agent/model"
	errx "github.com/retention-intel/server/internal/core/error"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSinkPublishesKeyedJSON(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaEventSink(w)

	ev := model.Event{ID: "e1", ConversationID: "c1", Type: model.EventGuardrailBlock, CreatedAt: t0,
		Payload: map[string]any{"findings": map[string]any{"threat": []any{"keyword"}}}}
	require.NoError(t, sink.Record(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, []byte("c1"), msg.Key)
	assert.Equal(t, t0, msg.Time)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("guardrail_block"), msg.Headers[0].Value)

	var decoded model.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, ev.Type, decoded.Type)

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaSinkWrapsErrors(t *testing.T) {
	sink := NewKafkaEventSink(&fakeWriter{err: context.DeadlineExceeded})
	err := sink.Record(context.Background(), model.Event{ConversationID: "c1"})
	assert.Equal(t, 504, errx.StatusOf(err))

	sink = NewKafkaEventSink(&fakeWriter{err: errors.New("leader not available")})
	err = sink.Record(context.Background(), model.Event{ConversationID: "c1"})
	assert.Equal(t, 502, errx.StatusOf(err))
}
