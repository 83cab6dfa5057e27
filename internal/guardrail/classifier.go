package guardrail

import (
	"context"
	_ "embed"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/retention-intel/server/internal/agent/llm"
	"github.com/retention-intel/server/internal/agent/parsers"
	logx "github.com/retention-intel/server/pkg/logger"
)

//go:embed template/guard_prompt.txt
var guardPromptTemplate string

// RiskVerdict is the jailbreak/threat classification of one message.
type RiskVerdict struct {
	Jailbreak bool `json:"jailbreak"`
	Threat    bool `json:"threat"`
}

// RiskClassifier classifies a message. Implementations fail open.
type RiskClassifier interface {
	Classify(ctx context.Context, text string) RiskVerdict
}

// ModelClassifier asks a chat model for a RiskVerdict.
type ModelClassifier struct {
	chat      einomodel.BaseChatModel
	tmpl      prompt.ChatTemplate
	modelName string
	timeout   time.Duration
}

// NewModelClassifier builds a classifier over the given chat model.
func NewModelClassifier(chat einomodel.BaseChatModel, modelName string, timeout time.Duration) *ModelClassifier {
	return &ModelClassifier{
		chat:      chat,
		tmpl:      prompt.FromMessages(schema.GoTemplate, schema.UserMessage(guardPromptTemplate)),
		modelName: modelName,
		timeout:   timeout,
	}
}

// Classify never returns an error: any render, call, or parse failure
// yields the all-false verdict.
func (c *ModelClassifier) Classify(ctx context.Context, text string) RiskVerdict {
	msgs, err := c.tmpl.Format(ctx, map[string]any{"message": text})
	if err != nil {
		logx.Warn().Err(err).Str("component", "guard_classifier").Msg("failed to render guard prompt")
		return RiskVerdict{}
	}

	res := llm.Generate(ctx, c.chat, msgs, c.timeout)
	if !res.OK() {
		logx.Warn().Err(res.Err).
			Str("component", "guard_classifier").
			Str("failure", string(res.Failure)).
			Msg("risk classification unavailable, failing open")
		return RiskVerdict{}
	}

	verdict, err := ParseRiskVerdict(res.Text)
	if err != nil {
		logx.Warn().Err(err).
			Str("component", "guard_classifier").
			Str("output", parsers.SafeSnippet(res.Text)).
			Msg("unparsable risk classification, failing open")
		return RiskVerdict{}
	}

	logx.Debug().
		Str("model", c.modelName).
		Bool("jailbreak", verdict.Jailbreak).
		Bool("threat", verdict.Threat).
		Float64("cost_usd", res.CostUSD(c.modelName)).
		Msg("risk classification")
	return verdict
}

// ParseRiskVerdict decodes model output into a verdict.
func ParseRiskVerdict(content string) (RiskVerdict, error) {
	obj, err := parsers.ParseJSONObject(content)
	if err != nil {
		return RiskVerdict{}, err
	}
	return RiskVerdict{
		Jailbreak: parsers.Truthy(obj["jailbreak"]),
		Threat:    parsers.Truthy(obj["threat"]),
	}, nil
}
