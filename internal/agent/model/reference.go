package model

// Offer is a retention offer from the offer catalog.
type Offer struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Segments []string `json:"segments"`
	Reasons  []string `json:"reasons"`
	Details  string   `json:"details"`
}

// AppliesToSegment reports whether the offer targets the segment.
func (o Offer) AppliesToSegment(segment string) bool {
	for _, s := range o.Segments {
		if s == segment {
			return true
		}
	}
	return false
}

// AppliesToReason reports whether the offer addresses the attrition reason.
func (o Offer) AppliesToReason(reason string) bool {
	for _, r := range o.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

// ProductContext is the free-form catalog entry for one product.
type ProductContext map[string]any

// ProductCatalog maps product name to its context.
type ProductCatalog map[string]ProductContext

// KnowledgeDoc is a short policy or playbook entry.
type KnowledgeDoc struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// HitKind tags the payload carried by a semantic hit.
type HitKind string

const (
	HitOffer     HitKind = "offer"
	HitKnowledge HitKind = "knowledge"
)

// SemanticHit is a retrieved corpus item with its similarity score.
type SemanticHit struct {
	ID        string        `json:"id"`
	Kind      HitKind       `json:"type"`
	Score     float64       `json:"score"`
	Offer     *Offer        `json:"offer,omitempty"`
	Knowledge *KnowledgeDoc `json:"knowledge,omitempty"`
}
