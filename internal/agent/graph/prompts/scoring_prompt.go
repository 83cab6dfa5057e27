package prompts

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// RenderScoringPrompt substitutes {name} tokens from input into a scoring
// function template. Only known tokens are replaced so JSON braces in the
// template survive; {{ and }} collapse to single braces.
func RenderScoringPrompt(ctx context.Context, template string, input map[string]string) (string, error) {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Replacer matches in argument order, so tokens must precede the escapes.
	pairs := make([]string, 0, 2*len(keys)+4)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", input[k])
	}
	pairs = append(pairs, "{{", "{", "}}", "}")
	content := strings.NewReplacer(pairs...).Replace(template)

	// Wrap via Eino prompt component using a messages placeholder to emit callbacks
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("judge_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"judge_messages": []*schema.Message{schema.UserMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("scoring prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("scoring prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}
