package model

import "time"

// StoredMessage is a chat message as persisted in the relational store.
type StoredMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// EvalMetric is one evaluation batch result.
type EvalMetric struct {
	ID              string    `json:"id"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	Compliance      float64   `json:"compliance"`
	Completeness    float64   `json:"completeness"`
	GuardrailBlocks int       `json:"guardrail_blocks"`
	TotalMessages   int       `json:"total_messages"`
	CreatedAt       time.Time `json:"created_at"`
}

// JudgeRun is one scoring-function evaluation of one message.
type JudgeRun struct {
	ID               string            `json:"id"`
	ConversationID   string            `json:"conversation_id"`
	ScoringID        string            `json:"scoring_id"`
	ScoringVersion   string            `json:"scoring_version"`
	ScoringRevision  string            `json:"scoring_revision"`
	Model            string            `json:"model"`
	Input            map[string]string `json:"input"`
	Prompt           string            `json:"prompt"`
	RawOutput        string            `json:"raw_output"`
	Parsed           map[string]any    `json:"parsed"`
	ValidationErrors []string          `json:"validation_errors,omitempty"`
	ScoredAt         time.Time         `json:"scored_at"`
	CreatedAt        time.Time         `json:"created_at"`
}
