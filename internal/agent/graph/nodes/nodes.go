package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"

	"github.com/retention-intel/server/internal/agent/model"
	"github.com/retention-intel/server/internal/agent/stages"
	"github.com/retention-intel/server/internal/refdata"
	logx "github.com/retention-intel/server/pkg/logger"
)

const (
	NodeAttrition    = "attrition"
	NodeSegmentation = "segmentation"
	NodeEvidence     = "evidence"
	NodeGeneration   = "generation"
)

type (
	preHandler  = compose.StatePreHandler[*model.PipelineState, *model.TurnTrace]
	postHandler = compose.StatePostHandler[*model.PipelineState, *model.TurnTrace]
)

// NewTurnPreHandler resets the trace at the start of a turn.
func NewTurnPreHandler() preHandler {
	return func(ctx context.Context, in *model.PipelineState, t *model.TurnTrace) (*model.PipelineState, error) {
		t.ConversationID = in.ConversationID
		t.Stages = t.Stages[:0]
		t.TotalCostUSD = 0
		return in, nil
	}
}

// NewStagePostHandler appends the finished stage to the trail.
func NewStagePostHandler(node string) postHandler {
	return func(ctx context.Context, out *model.PipelineState, t *model.TurnTrace) (*model.PipelineState, error) {
		t.Stages = append(t.Stages, node)
		return out, nil
	}
}

// NewGenerationPostHandler closes the trail and logs the accumulated cost.
func NewGenerationPostHandler() postHandler {
	return func(ctx context.Context, out *model.PipelineState, t *model.TurnTrace) (*model.PipelineState, error) {
		t.Stages = append(t.Stages, NodeGeneration)
		logx.Info().
			Str("conversation_id", t.ConversationID).
			Strs("stages", t.Stages).
			Float64("total_cost_usd", t.TotalCostUSD).
			Msg("pipeline turn completed")
		return out, nil
	}
}

// NewAttritionNode resolves the customer or the ranked list.
func NewAttritionNode(data *refdata.Dataset) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
		s.Attrition = stages.LookupAttrition(data.Customers, s.UserInput, s.CustomerID)
		logx.Debug().
			Str("conversation_id", s.ConversationID).
			Str("mode", string(s.Attrition.Mode)).
			Int("ranked", len(s.Attrition.Ranked)).
			Msg("attrition resolved")
		return s, nil
	})
}

// NewSegmentationNode segments the focus customer.
func NewSegmentationNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
		s.Segment = stages.Segment(s.Attrition.Focus())
		return s, nil
	})
}

// NewEvidenceNode gathers offers, product context and semantic hits.
func NewEvidenceNode(data *refdata.Dataset, searcher stages.Searcher, topK int) *compose.Lambda {
	if topK <= 0 {
		topK = stages.DefaultTopK
	}
	return compose.InvokableLambda(func(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
		ev := stages.AssembleEvidence(ctx, s.Segment, s.Attrition.Focus(), data.Offers, data.Products, searcher, topK)
		s.Offers = ev.Offers
		s.ProductContext = ev.ProductContext
		s.SemanticHits = ev.SemanticHits
		return s, nil
	})
}

// NewGenerationNode produces the response text and books model cost on the trace.
func NewGenerationNode(gen *stages.Generator) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
		out := gen.Generate(ctx, s)
		s.ResponseText = out.Text

		if out.CostUSD > 0 {
			if err := compose.ProcessState(ctx, func(_ context.Context, t *model.TurnTrace) error {
				t.TotalCostUSD += out.CostUSD
				return nil
			}); err != nil {
				logx.Warn().Err(err).Msg("failed to record generation cost")
			}
		}
		logx.Debug().
			Str("conversation_id", s.ConversationID).
			Str("source", string(out.Source)).
			Float64("cost_usd", out.CostUSD).
			Msg("response generated")
		return s, nil
	})
}
