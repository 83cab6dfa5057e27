package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type ConversationRepository interface {
	// AddMessage appends a message to the transcript of the given conversation
	AddMessage(ctx context.Context, conversationID string, message *schema.Message) error

	// LoadHistory retrieves the transcript for a conversation
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// ClearHistory removes the transcript for a conversation
	ClearHistory(ctx context.Context, conversationID string) error
}

// ConversationHistory represents a loaded transcript.
type ConversationHistory struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []*schema.Message `json:"messages"`
}
