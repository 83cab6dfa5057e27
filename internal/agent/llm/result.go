// Package llm wraps chat model calls into a typed result so every call site
// chooses its own default on failure.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/retention-intel/server/internal/agent/model"
)

// Failure names why a model call produced no usable text.
type Failure string

const (
	FailureNone        Failure = ""
	FailureUnavailable Failure = "model_unavailable"
	FailureInvoke      Failure = "invoke_error"
	FailureTimeout     Failure = "timeout"
	FailureEmpty       Failure = "empty_output"
)

// Result is either model text or a failure reason.
type Result struct {
	Text    string
	Failure Failure
	Err     error
	Usage   *schema.TokenUsage
}

// OK reports whether the call produced non-empty text.
func (r Result) OK() bool {
	return r.Failure == FailureNone
}

// CostUSD prices the call's token usage for the named model.
func (r Result) CostUSD(modelName string) float64 {
	_, _, total := model.ComputeCost(r.Usage, model.ResolvePricing(modelName))
	return total
}

// Generate invokes the chat model once. A zero timeout leaves the caller's
// deadline in place. It never returns an error; failures are encoded in Result.
func Generate(ctx context.Context, cm einomodel.BaseChatModel, msgs []*schema.Message, timeout time.Duration, opts ...einomodel.Option) Result {
	if cm == nil {
		return Result{Failure: FailureUnavailable}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Re-scope the run info so chat model handlers fire when called from a lambda node.
	typ, _ := components.GetType(cm)
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      typ,
		Type:      typ,
		Component: components.ComponentOfChatModel,
	})

	msg, err := cm.Generate(ctx, msgs, opts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{Failure: FailureTimeout, Err: err}
		}
		return Result{Failure: FailureInvoke, Err: err}
	}
	if msg == nil {
		return Result{Failure: FailureEmpty}
	}

	var usage *schema.TokenUsage
	if msg.ResponseMeta != nil {
		usage = msg.ResponseMeta.Usage
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return Result{Failure: FailureEmpty, Usage: usage}
	}
	return Result{Text: text, Usage: usage}
}
