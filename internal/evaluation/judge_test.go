package evaluation

import (
	"context"
	"errors"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedModel struct {
	reply  string
	err    error
	prompt string
}

func (m *scriptedModel) Generate(_ context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	if len(in) > 0 {
		m.prompt = in[0].Content
	}
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func loadCompleteness(t *testing.T) ScoringFunction {
	t.Helper()
	sf, err := NewLoader("").Load("completeness", "v1")
	require.NoError(t, err)
	return sf
}

func TestJudgeScore(t *testing.T) {
	sf := loadCompleteness(t)
	input := map[string]string{"response_text": "retention_summary: fine"}

	tests := []struct {
		name        string
		model       *scriptedModel
		wantParsed  map[string]any
		wantInvalid bool
		wantRaw     string
	}{
		{
			name:       "valid json",
			model:      &scriptedModel{reply: `{"score": 1, "missing": []}`},
			wantParsed: map[string]any{"score": float64(1), "missing": []any{}},
			wantRaw:    `{"score": 1, "missing": []}`,
		},
		{
			name:       "fenced json",
			model:      &scriptedModel{reply: "```json\n{\"score\": 0.5, \"missing\": [\"offers\"]}\n```"},
			wantParsed: map[string]any{"score": 0.5, "missing": []any{"offers"}},
			wantRaw:    "```json\n{\"score\": 0.5, \"missing\": [\"offers\"]}\n```",
		},
		{
			name:        "schema violation",
			model:       &scriptedModel{reply: `{"score": 7}`},
			wantParsed:  map[string]any{"score": float64(7)},
			wantInvalid: true,
			wantRaw:     `{"score": 7}`,
		},
		{
			name:       "not json",
			model:      &scriptedModel{reply: "looks complete to me"},
			wantParsed: map[string]any{"error": JudgeErrorInvalidJSON, "raw": "looks complete to me"},
			wantRaw:    "looks complete to me",
		},
		{
			name:       "invoke error",
			model:      &scriptedModel{err: errors.New("quota exceeded")},
			wantParsed: map[string]any{"error": JudgeErrorInvokeFailed, "reason": "invoke_error"},
		},
		{
			name:       "empty output",
			model:      &scriptedModel{reply: "   "},
			wantParsed: map[string]any{"error": JudgeErrorInvalidJSON, "raw": ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := NewJudge(tt.model, time.Second).Score(context.Background(), sf, "c1", input)

			assert.Equal(t, "c1", run.ConversationID)
			assert.Equal(t, "completeness", run.ScoringID)
			assert.Equal(t, "v1", run.ScoringVersion)
			assert.Equal(t, sf.RevisionID(), run.ScoringRevision)
			assert.Equal(t, sf.Model, run.Model)
			assert.Equal(t, input, run.Input)
			assert.Equal(t, tt.wantParsed, run.Parsed)
			assert.Equal(t, tt.wantRaw, run.RawOutput)
			assert.Equal(t, tt.wantInvalid, len(run.ValidationErrors) > 0)
			assert.False(t, run.ScoredAt.IsZero())
		})
	}
}

func TestJudgeRendersPrompt(t *testing.T) {
	sf := loadCompleteness(t)
	m := &scriptedModel{reply: `{"score": 1, "missing": []}`}

	run := NewJudge(m, 0).Score(context.Background(), sf, "c1", map[string]string{"response_text": "THE ANSWER"})

	assert.Contains(t, m.prompt, "THE ANSWER")
	assert.Contains(t, m.prompt, `{"score":`)
	assert.NotContains(t, m.prompt, "{response_text}")
	assert.Equal(t, m.prompt, run.Prompt)
}

func TestJudgeWithoutModel(t *testing.T) {
	run := NewJudge(nil, 0).Score(context.Background(), loadCompleteness(t), "c1", map[string]string{"response_text": "x"})
	assert.Equal(t, JudgeErrorInvokeFailed, run.Parsed["error"])
	assert.Equal(t, "model_unavailable", run.Parsed["reason"])
}
