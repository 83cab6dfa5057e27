package evaluation

import (
	"context"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/retention-intel/server/internal/agent/graph/prompts"
	"github.com/retention-intel/server/internal/agent/llm"
	"github.com/retention-intel/server/internal/agent/model"
	"github.com/retention-intel/server/internal/agent/parsers"
	logx "github.com/retention-intel/server/pkg/logger"
)

// Parsed-output error markers stored on failed judge runs.
const (
	JudgeErrorInvalidJSON  = "invalid_json"
	JudgeErrorInvokeFailed = "invoke_failed"
	JudgeErrorPrompt       = "prompt_failed"
)

// Judge runs one scoring function over one input with a chat model.
type Judge struct {
	chat    einomodel.BaseChatModel
	timeout time.Duration
	now     func() time.Time
}

func NewJudge(chat einomodel.BaseChatModel, timeout time.Duration) *Judge {
	return &Judge{
		chat:    chat,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Score never fails: model and parse failures are recorded in the run's
// Parsed field.
func (j *Judge) Score(ctx context.Context, sf ScoringFunction, conversationID string, input map[string]string) model.JudgeRun {
	run := model.JudgeRun{
		ConversationID:  conversationID,
		ScoringID:       sf.ID,
		ScoringVersion:  sf.Version,
		ScoringRevision: sf.RevisionID(),
		Model:           sf.Model,
		Input:           input,
	}

	prompt, err := prompts.RenderScoringPrompt(ctx, sf.PromptTemplate, input)
	if err != nil {
		logx.Error().Err(err).Str("scoring_id", sf.ID).Msg("scoring prompt render failed")
		run.Parsed = map[string]any{"error": JudgeErrorPrompt}
		run.ScoredAt = j.now()
		return run
	}
	run.Prompt = prompt

	res := llm.Generate(ctx, j.chat, []*schema.Message{schema.UserMessage(prompt)}, j.timeout)
	run.ScoredAt = j.now()
	switch res.Failure {
	case llm.FailureNone:
	case llm.FailureEmpty:
		run.Parsed = map[string]any{"error": JudgeErrorInvalidJSON, "raw": ""}
		return run
	default:
		logx.Warn().Err(res.Err).
			Str("scoring_id", sf.ID).
			Str("failure", string(res.Failure)).
			Msg("judge call failed")
		run.Parsed = map[string]any{"error": JudgeErrorInvokeFailed, "reason": string(res.Failure)}
		return run
	}
	run.RawOutput = res.Text

	parsed, err := parsers.ParseJSONObject(res.Text)
	if err != nil {
		run.Parsed = map[string]any{"error": JudgeErrorInvalidJSON, "raw": res.Text}
		return run
	}
	run.Parsed = parsed
	run.ValidationErrors = sf.Validate(parsed)
	if len(run.ValidationErrors) > 0 {
		logx.Debug().
			Str("scoring_id", sf.ID).
			Strs("errors", run.ValidationErrors).
			Msg("judge output failed schema validation")
	}
	return run
}
