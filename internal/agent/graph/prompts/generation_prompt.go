package prompts

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/retention-intel/server/internal/agent/model"
)

//go:embed template/generation_prompt.txt
var generationPrompt string

// GenerationInput is the context rendered into the generation prompt.
type GenerationInput struct {
	Customer       model.Customer
	Segment        model.SegmentLabel
	Reason         string
	ProductContext model.ProductContext
	Offers         []model.Offer
	Knowledge      []model.SemanticHit
}

// RenderGeneration renders the retention prompt via the Eino prompt
// component so prompt callbacks fire.
func RenderGeneration(ctx context.Context, in GenerationInput) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.UserMessage(generationPrompt),
	)
	vars := map[string]any{
		"Customer":       compactJSON(in.Customer),
		"Segment":        string(in.Segment),
		"Reason":         in.Reason,
		"ProductContext": compactJSON(in.ProductContext),
		"Offers":         compactJSON(in.Offers),
		"Knowledge":      compactJSON(in.Knowledge),
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("generation prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("generation prompt render: empty result")
	}
	return msgs, nil
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
