package stages

import (
	"context"
	"strings"

	"github.com/retention-intel/server/internal/agent/model"
	"github.com/retention-intel/server/internal/retrieval"
	logx "github.com/retention-intel/server/pkg/logger"
)

const (
	maxOffers     = 3
	DefaultTopK   = 3
	defaultReason = "general"
)

// Searcher is the semantic index seen by evidence assembly.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]retrieval.Hit, error)
}

// Evidence is the output of the evidence stage.
type Evidence struct {
	Offers         []model.Offer
	ProductContext model.ProductContext
	SemanticHits   []model.SemanticHit
}

// ReasonOf returns the customer's attrition reason, "general" when blank.
func ReasonOf(c model.Customer) string {
	if strings.TrimSpace(c.Reason) == "" {
		return defaultReason
	}
	return c.Reason
}

// MatchOffers returns up to three offers matching segment and reason,
// falling back to segment-only matches.
func MatchOffers(catalog []model.Offer, segment model.SegmentLabel, reason string) []model.Offer {
	matches := []model.Offer{}
	for _, o := range catalog {
		if o.AppliesToSegment(string(segment)) && o.AppliesToReason(reason) {
			matches = append(matches, o)
		}
	}
	if len(matches) == 0 {
		for _, o := range catalog {
			if o.AppliesToSegment(string(segment)) {
				matches = append(matches, o)
			}
		}
	}
	if len(matches) > maxOffers {
		matches = matches[:maxOffers]
	}
	return matches
}

// ProductContextFor looks up the product; unknown products get an empty map.
func ProductContextFor(catalog model.ProductCatalog, product string) model.ProductContext {
	if ctx, ok := catalog[product]; ok && ctx != nil {
		return ctx
	}
	return model.ProductContext{}
}

// EvidenceQuery builds the semantic search query.
func EvidenceQuery(reason string, segment model.SegmentLabel, product string) string {
	return reason + " " + string(segment) + " " + product
}

// AssembleEvidence gathers offers, product context and semantic hits for the
// focus customer. Search failures degrade to no hits.
func AssembleEvidence(ctx context.Context, segment model.SegmentResult, customer model.Customer, offers []model.Offer, products model.ProductCatalog, searcher Searcher, k int) Evidence {
	reason := ReasonOf(customer)
	ev := Evidence{
		Offers:         MatchOffers(offers, segment.Label, reason),
		ProductContext: ProductContextFor(products, customer.Product),
		SemanticHits:   []model.SemanticHit{},
	}
	if searcher == nil {
		return ev
	}

	hits, err := searcher.Search(ctx, EvidenceQuery(reason, segment.Label, customer.Product), k)
	if err != nil {
		logx.Warn().Err(err).Str("customer_id", customer.ID).Msg("semantic retrieval failed, continuing without hits")
		return ev
	}
	for _, h := range hits {
		ev.SemanticHits = append(ev.SemanticHits, h.SemanticHit())
	}
	return ev
}
