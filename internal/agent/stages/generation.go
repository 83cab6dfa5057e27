package stages

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/retention-intel/server/internal/agent/graph/prompts"
	"github.com/retention-intel/server/internal/agent/llm"
	"github.com/retention-intel/server/internal/agent/model"
	logx "github.com/retention-intel/server/pkg/logger"
)

// FallbackResponse is returned when the chat model fails or returns nothing.
const FallbackResponse = "retention_summary: Customer shows elevated churn risk driven by recent complaints and reduced engagement.\n" +
	"offers: Offer a fee waiver and targeted rewards boost on the Cash Back Mastercard for 3 months.\n" +
	"next_best_action: Call within 24 hours, acknowledge service issues, and confirm resolution timeline.\n" +
	"email_draft: Hello [Name], I wanted to reach out personally regarding your recent experience..."

const (
	approvalPrefix    = "Approval recorded. Here is the final email content:\n\nemail_draft:\n"
	emailPlaceholder  = "\n\nemail_draft:\n(Provide the drafted email here.)"
	rankedTableHeader = "| Rank | Customer | Segment | Risk | Reason | Email |\n|---|---|---|---|---|---|"
)

var (
	listingKeywords = []string{"top", "at-risk"}
	emailKeywords   = []string{"email", "draft", "send"}

	// redactionToken matches guardrail placeholders such as [REDACTED_EMAIL];
	// their label is not part of what the caller asked for.
	redactionToken = regexp.MustCompile(`\[REDACTED_[A-Z0-9_]+\]`)
)

// GenerationSource records which branch produced the response.
type GenerationSource string

const (
	SourceApproval GenerationSource = "approval"
	SourceTable    GenerationSource = "ranked_table"
	SourceModel    GenerationSource = "model"
	SourceFallback GenerationSource = "fallback"
)

// Generation is the output of the generation stage.
type Generation struct {
	Text    string
	Source  GenerationSource
	CostUSD float64
}

// Generator produces the final response text.
type Generator struct {
	chat      einomodel.BaseChatModel
	modelName string
	timeout   time.Duration
}

type GeneratorOption func(*Generator)

// WithModelTimeout bounds each chat model call.
func WithModelTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.timeout = d }
}

// WithModelName sets the model name used for cost accounting.
func WithModelName(name string) GeneratorOption {
	return func(g *Generator) { g.modelName = name }
}

// NewGenerator builds a generator. A nil chat model always yields the fallback.
func NewGenerator(chat einomodel.BaseChatModel, opts ...GeneratorOption) *Generator {
	g := &Generator{chat: chat}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WantsListing reports whether the request asks for a ranked listing.
func WantsListing(text string) bool {
	return containsAnyFold(text, listingKeywords)
}

// WantsEmail reports whether the request asks for an email.
func WantsEmail(text string) bool {
	return containsAnyFold(text, emailKeywords)
}

func containsAnyFold(text string, keywords []string) bool {
	lowered := strings.ToLower(redactionToken.ReplaceAllString(text, " "))
	for _, k := range keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}

// RenderRankedTable renders ranked rows as a markdown table.
func RenderRankedTable(rows []model.RankedCustomer) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, rankedTableHeader)
	for i, r := range rows {
		lines = append(lines, fmt.Sprintf("| %d | %s (%s) | %s | %.2f | %s | %s |",
			i+1, r.Name, r.CustomerID, r.Segment, r.ChurnRiskScore, r.Reason, r.Email))
	}
	return strings.Join(lines, "\n")
}

// Generate applies, in order: the approval override, the ranked table, and
// the chat model with its fixed fallback.
func (g *Generator) Generate(ctx context.Context, s *model.PipelineState) Generation {
	if s.ApproveEmail && s.ApproveEmailContent != "" {
		return Generation{Text: approvalPrefix + s.ApproveEmailContent, Source: SourceApproval}
	}

	if s.Attrition.Mode == model.AttritionRankedList && WantsListing(s.UserInput) {
		return Generation{Text: RenderRankedTable(s.Attrition.Ranked), Source: SourceTable}
	}

	customer := s.Attrition.Focus()
	gen := g.invoke(ctx, prompts.GenerationInput{
		Customer:       customer,
		Segment:        s.Segment.Label,
		Reason:         ReasonOf(customer),
		ProductContext: s.ProductContext,
		Offers:         s.Offers,
		Knowledge:      s.SemanticHits,
	})

	if WantsEmail(s.UserInput) && !strings.Contains(strings.ToLower(gen.Text), "email_draft") {
		gen.Text += emailPlaceholder
	}
	return gen
}

func (g *Generator) invoke(ctx context.Context, in prompts.GenerationInput) Generation {
	msgs, err := prompts.RenderGeneration(ctx, in)
	if err != nil {
		logx.Error().Err(err).Msg("generation prompt render failed, using fallback")
		return Generation{Text: FallbackResponse, Source: SourceFallback}
	}

	res := llm.Generate(ctx, g.chat, msgs, g.timeout)
	cost := res.CostUSD(g.modelName)
	if !res.OK() {
		logx.Warn().Err(res.Err).
			Str("failure", string(res.Failure)).
			Str("model", g.modelName).
			Msg("generation failed, using fallback")
		return Generation{Text: FallbackResponse, Source: SourceFallback, CostUSD: cost}
	}
	return Generation{Text: res.Text, Source: SourceModel, CostUSD: cost}
}
