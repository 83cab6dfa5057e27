// Package guardrail gates inbound chat messages: PII is redacted and
// jailbreak or threat attempts are flagged for blocking.
package guardrail

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Finding categories.
const (
	CategoryPII       = "pii"
	CategoryJailbreak = "jailbreak"
	CategoryThreat    = "threat"
)

// Finding sources.
const (
	SourceKeyword = "keyword"
	SourceModel   = "llm"
)

// Result is the outcome of evaluating one message.
type Result struct {
	Blocked      bool                `json:"blocked"`
	RedactedText string              `json:"redacted_text"`
	Findings     map[string][]string `json:"findings"`
	Redactions   map[string]int      `json:"redactions"`
}

// HasRedactions reports whether any PII was replaced.
func (r Result) HasRedactions() bool {
	return len(r.Redactions) > 0
}

// Engine evaluates messages against a compiled policy.
type Engine struct {
	policy     *Policy
	classifier RiskClassifier
}

type Option func(*Engine)

// WithClassifier enables the model-based risk check.
func WithClassifier(c RiskClassifier) Option {
	return func(e *Engine) { e.classifier = c }
}

func NewEngine(policy *Policy, opts ...Option) *Engine {
	e := &Engine{policy: policy}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs PII redaction, the keyword check and the optional model
// check. The model check runs concurrently with the local checks and sees
// the original text. Evaluate never fails.
func (e *Engine) Evaluate(ctx context.Context, text string) Result {
	var (
		g            errgroup.Group
		modelVerdict RiskVerdict
	)
	if e.classifier != nil {
		g.Go(func() error {
			modelVerdict = e.classifier.Classify(ctx, text)
			return nil
		})
	}

	redacted, redactions := e.policy.Redact(text)
	piiHits := e.policy.DetectPII(text)
	keywordVerdict := e.policy.KeywordVerdict(text)

	_ = g.Wait()

	findings := map[string][]string{}
	if len(piiHits) > 0 {
		findings[CategoryPII] = piiHits
	}
	addRisk(findings, CategoryJailbreak, keywordVerdict.Jailbreak, modelVerdict.Jailbreak)
	addRisk(findings, CategoryThreat, keywordVerdict.Threat, modelVerdict.Threat)

	_, jailbreak := findings[CategoryJailbreak]
	_, threat := findings[CategoryThreat]
	return Result{
		Blocked:      jailbreak || threat,
		RedactedText: redacted,
		Findings:     findings,
		Redactions:   redactions,
	}
}

func addRisk(findings map[string][]string, category string, keyword, model bool) {
	var sources []string
	if keyword {
		sources = append(sources, SourceKeyword)
	}
	if model {
		sources = append(sources, SourceModel)
	}
	if len(sources) > 0 {
		findings[category] = sources
	}
}
