package model

import (
	"context"
	"time"
)

// EventType names an audit event emitted during a turn.
type EventType string

const (
	EventUserMessage      EventType = "user_message"
	EventPIIRedaction     EventType = "pii_redaction"
	EventGuardrailBlock   EventType = "guardrail_block"
	EventAssistantMessage EventType = "assistant_message"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Event is one audit record. Content is set for message events, Payload
// for redaction and block events.
type Event struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Type           EventType      `json:"event_type"`
	Role           string         `json:"role,omitempty"`
	Content        string         `json:"content,omitempty"`
	CustomerID     string         `json:"customer_id,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// IsMessage reports whether the event carries a chat message.
func (e Event) IsMessage() bool {
	return e.Type == EventUserMessage || e.Type == EventAssistantMessage
}

// EventSink receives audit events. Implementations must be safe for
// concurrent use.
type EventSink interface {
	Record(ctx context.Context, event Event) error
}
