package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL string `envconfig:"CONVERSATION_TTL" default:"24h"`
}

// TTLDuration parses TTL, falling back to 24h on a malformed value.
func (c ConversationConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d < 0 {
		return 24 * time.Hour
	}
	return d
}

type GeminiConfig struct {
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

// GuardModelConfig configures the low-temperature model used by the
// guardrail risk classifier and the evaluation judge.
type GuardModelConfig struct {
	Model       string  `envconfig:"GUARD_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"GUARD_MAX_TOKENS" default:"512"`
	Temperature float32 `envconfig:"GUARD_TEMPERATURE" default:"0"`
}

type EmbeddingConfig struct {
	Model    string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	TaskType string `envconfig:"EMBEDDING_TASK_TYPE" default:"RETRIEVAL_DOCUMENT"`
}

type PipelineConfig struct {
	DataDir           string        `envconfig:"DATA_DIR"`
	SemanticTopK      int           `envconfig:"SEMANTIC_TOP_K" default:"3"`
	GenerationTimeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"45s"`
	GuardTimeout      time.Duration `envconfig:"GUARD_TIMEOUT" default:"15s"`
}

type GuardrailConfig struct {
	PolicyFile string `envconfig:"GUARDRAIL_POLICY_FILE"`
	LLMEnabled bool   `envconfig:"GUARDRAIL_LLM_ENABLED" default:"true"`
}

type EvaluationConfig struct {
	BatchWindow     time.Duration `envconfig:"EVAL_BATCH_WINDOW" default:"5m"`
	Schedule        string        `envconfig:"EVAL_SCHEDULE" default:"@every 5m"`
	ScoringDir      string        `envconfig:"SCORING_DIR"`
	SLACompliance   float64       `envconfig:"SLA_COMPLIANCE" default:"0.90"`
	SLACompleteness float64       `envconfig:"SLA_COMPLETENESS" default:"0.85"`
}
