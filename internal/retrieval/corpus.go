package retrieval

import (
	"fmt"
	"strings"

	"github.com/retention-intel/server/internal/agent/model"
)

// CorpusItem is one searchable document with its typed payload.
type CorpusItem struct {
	ID        string
	Text      string
	Kind      model.HitKind
	Offer     *model.Offer
	Knowledge *model.KnowledgeDoc
}

// BuildCorpus renders offers then knowledge documents into corpus items.
func BuildCorpus(offers []model.Offer, docs []model.KnowledgeDoc) []CorpusItem {
	items := make([]CorpusItem, 0, len(offers)+len(docs))
	for i := range offers {
		o := offers[i]
		items = append(items, CorpusItem{
			ID:    o.ID,
			Text:  OfferText(o),
			Kind:  model.HitOffer,
			Offer: &o,
		})
	}
	for i := range docs {
		d := docs[i]
		items = append(items, CorpusItem{
			ID:        d.ID,
			Text:      fmt.Sprintf("%s: %s", d.Title, d.Content),
			Kind:      model.HitKnowledge,
			Knowledge: &d,
		})
	}
	return items
}

// OfferText renders the embedding text for an offer.
func OfferText(o model.Offer) string {
	return fmt.Sprintf("Offer: %s. Segments: %s. Reasons: %s. Details: %s",
		o.Name, strings.Join(o.Segments, ", "), strings.Join(o.Reasons, ", "), o.Details)
}

// Hit is a corpus item scored against a query.
type Hit struct {
	Item  CorpusItem
	Score float64
}

// SemanticHit converts the hit into the pipeline representation.
func (h Hit) SemanticHit() model.SemanticHit {
	return model.SemanticHit{
		ID:        h.Item.ID,
		Kind:      h.Item.Kind,
		Score:     h.Score,
		Offer:     h.Item.Offer,
		Knowledge: h.Item.Knowledge,
	}
}
