package observers

import (
	"context"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	agentmodel "github.com/retention-intel/server/internal/agent/model"
	"github.com/retention-intel/server/internal/agent/parsers"
	logx "github.com/retention-intel/server/pkg/logger"
)

// newModelHandler logs model calls and the priced token usage of each one.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ev := logx.Debug().Str("type", info.Type).Str("name", info.Name)
			if input != nil {
				ev = ev.Int("messages", len(input.Messages)).
					Str("user", parsers.SafeSnippet(lastUserContent(input.Messages)))
			}
			ev.Msg("model call started")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			if output == nil || output.Message == nil {
				logx.Debug().Str("name", info.Name).Msg("model call ended without output")
				return ctx
			}

			modelName := info.Name
			if output.Config != nil && output.Config.Model != "" {
				modelName = output.Config.Model
			}
			var usage *schema.TokenUsage
			if output.Message.ResponseMeta != nil {
				usage = output.Message.ResponseMeta.Usage
			}
			in, out, total := agentmodel.ComputeCost(usage, agentmodel.ResolvePricing(modelName))

			ev := logx.Debug().
				Str("model", modelName).
				Str("assistant", parsers.SafeSnippet(strings.TrimSpace(output.Message.Content))).
				Float64("input_cost_usd", in).
				Float64("output_cost_usd", out).
				Float64("total_cost_usd", total)
			if usage != nil {
				ev = ev.Int("prompt_tokens", usage.PromptTokens).
					Int("completion_tokens", usage.CompletionTokens)
			}
			ev.Msg("model call ended")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Warn().Err(err).Str("type", info.Type).Str("name", info.Name).Msg("model call failed")
			return ctx
		},
	}
}

func lastUserContent(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m == nil {
			continue
		}
		if m.Role == schema.User {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}
