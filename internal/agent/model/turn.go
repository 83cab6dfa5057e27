package model

// TurnRequest is the inbound chat request.
type TurnRequest struct {
	ConversationID      string `json:"conversation_id,omitempty"`
	Message             string `json:"message"`
	CustomerID          string `json:"customer_id,omitempty"`
	ApproveEmail        bool   `json:"approve_email,omitempty"`
	ApproveEmailContent string `json:"approve_email_content,omitempty"`
}

// TurnResponse is the result of a non-blocked turn.
type TurnResponse struct {
	ConversationID    string              `json:"conversation_id"`
	Response          string              `json:"response"`
	Blocked           bool                `json:"blocked"`
	GuardrailFindings map[string][]string `json:"guardrail_findings"`
}

// TurnTrace stores per-invocation state for the Eino graph.
// Concurrency model:
//   - Registered as graph local state via compose.WithGenLocalState.
//   - Read and written only inside state handlers or compose.ProcessState,
//     which Eino serializes, so no extra locking is needed.
type TurnTrace struct {
	ConversationID string
	Stages         []string

	// Accumulated total LLM cost (USD) across model invocations for this turn
	TotalCostUSD float64
}
