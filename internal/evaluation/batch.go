package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/retention-intel/server/internal/agent/model"
	logx "github.com/retention-intel/server/pkg/logger"
)

// RequiredSections are the response sections counted by completeness.
var RequiredSections = []string{"retention_summary", "offers", "next_best_action"}

// DefaultScoringRefs are the scoring functions applied by the batch.
var DefaultScoringRefs = []Ref{
	{Name: "completeness", Version: "v1"},
	{Name: "compliance", Version: "v1"},
}

// Store is the persistence the batch reads from and writes to.
type Store interface {
	ListMessages(ctx context.Context, start, end time.Time) ([]model.StoredMessage, error)
	CountGuardrailBlocks(ctx context.Context, start, end time.Time) (int, error)
	InsertMetric(ctx context.Context, m model.EvalMetric) error
	InsertJudgeRun(ctx context.Context, r model.JudgeRun) error
}

// Scorer produces a judge run for one message.
type Scorer interface {
	Score(ctx context.Context, sf ScoringFunction, conversationID string, input map[string]string) model.JudgeRun
}

// ComputeCompleteness is the share of required sections named in content.
func ComputeCompleteness(content string) float64 {
	lower := strings.ToLower(content)
	present := 0
	for _, f := range RequiredSections {
		if strings.Contains(lower, f) {
			present++
		}
	}
	return float64(present) / float64(len(RequiredSections))
}

// Batch computes window metrics and judge runs.
type Batch struct {
	store     Store
	scorer    Scorer
	functions []ScoringFunction
	window    time.Duration
	now       func() time.Time
}

type BatchOption func(*Batch)

// WithBatchClock overrides the window end source.
func WithBatchClock(fn func() time.Time) BatchOption {
	return func(b *Batch) { b.now = fn }
}

// NewBatch builds a batch. A nil scorer or no functions skips judging.
func NewBatch(store Store, scorer Scorer, functions []ScoringFunction, window time.Duration, opts ...BatchOption) *Batch {
	b := &Batch{
		store:     store,
		scorer:    scorer,
		functions: functions,
		window:    window,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run evaluates the trailing window ending now and stores one metric row.
// An empty window scores 1.0 on both metrics.
func (b *Batch) Run(ctx context.Context) (model.EvalMetric, error) {
	end := b.now()
	start := end.Add(-b.window)
	metric := model.EvalMetric{
		WindowStart:  start,
		WindowEnd:    end,
		Compliance:   1.0,
		Completeness: 1.0,
	}

	msgs, err := b.store.ListMessages(ctx, start, end)
	if err != nil {
		return metric, fmt.Errorf("list messages: %w", err)
	}
	metric.TotalMessages = len(msgs)

	if len(msgs) > 0 {
		blocks, err := b.store.CountGuardrailBlocks(ctx, start, end)
		if err != nil {
			return metric, fmt.Errorf("count guardrail blocks: %w", err)
		}
		metric.GuardrailBlocks = blocks
		metric.Compliance = max(0.0, 1.0-float64(blocks)/float64(len(msgs)))

		var (
			sum     float64
			answers int
		)
		for _, m := range msgs {
			if m.Role != model.RoleAssistant {
				continue
			}
			answers++
			sum += ComputeCompleteness(m.Content)
			b.judge(ctx, m)
		}
		if answers > 0 {
			metric.Completeness = sum / float64(answers)
		}
	}

	if err := b.store.InsertMetric(ctx, metric); err != nil {
		return metric, fmt.Errorf("insert metric: %w", err)
	}
	logx.Info().
		Time("window_start", start).
		Time("window_end", end).
		Float64("compliance", metric.Compliance).
		Float64("completeness", metric.Completeness).
		Int("guardrail_blocks", metric.GuardrailBlocks).
		Int("total_messages", metric.TotalMessages).
		Msg("evaluation batch completed")
	return metric, nil
}

func (b *Batch) judge(ctx context.Context, m model.StoredMessage) {
	if b.scorer == nil {
		return
	}
	input := map[string]string{"response_text": m.Content}
	for _, sf := range b.functions {
		run := b.scorer.Score(ctx, sf, m.ConversationID, input)
		if err := b.store.InsertJudgeRun(ctx, run); err != nil {
			logx.Error().Err(err).
				Str("conversation_id", m.ConversationID).
				Str("scoring_id", sf.ID).
				Msg("failed to store judge run")
		}
	}
}
