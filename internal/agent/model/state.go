package model

// AttritionMode discriminates the attrition stage output.
type AttritionMode string

const (
	AttritionSingle     AttritionMode = "single"
	AttritionRankedList AttritionMode = "ranked_list"
)

// Customer is one row of the customer reference table.
type Customer struct {
	ID             string  `json:"customer_id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Segment        string  `json:"segment"`
	Product        string  `json:"product"`
	ChurnRiskScore float64 `json:"churn_risk_score"`
	Reason         string  `json:"reason"`
	AvgBalance     float64 `json:"avg_balance"`
	TenureMonths   int     `json:"tenure_months"`
	Complaints90d  int     `json:"complaints_90d"`
}

// RankedCustomer is the projection of a customer used in ranked listings.
type RankedCustomer struct {
	CustomerID     string  `json:"customer_id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Segment        string  `json:"segment"`
	Product        string  `json:"product"`
	ChurnRiskScore float64 `json:"churn_risk_score"`
	Reason         string  `json:"reason"`
}

// Rank projects a customer into a ranked row.
func (c Customer) Rank() RankedCustomer {
	return RankedCustomer{
		CustomerID:     c.ID,
		Name:           c.Name,
		Email:          c.Email,
		Segment:        c.Segment,
		Product:        c.Product,
		ChurnRiskScore: c.ChurnRiskScore,
		Reason:         c.Reason,
	}
}

// AttritionResult is either a single resolved customer or a ranked list.
//
// Customer is the focus record in both modes: the resolved customer for
// single, the highest-risk full record for ranked_list (nil when the table
// is empty). Ranked is populated only for ranked_list.
type AttritionResult struct {
	Mode     AttritionMode    `json:"mode"`
	Customer *Customer        `json:"customer,omitempty"`
	Ranked   []RankedCustomer `json:"customers,omitempty"`
}

// SingleAttrition builds a single-customer result.
func SingleAttrition(c Customer) AttritionResult {
	return AttritionResult{Mode: AttritionSingle, Customer: &c}
}

// RankedAttrition builds a ranked-list result with an optional focus record.
func RankedAttrition(rows []RankedCustomer, focus *Customer) AttritionResult {
	if rows == nil {
		rows = []RankedCustomer{}
	}
	return AttritionResult{Mode: AttritionRankedList, Customer: focus, Ranked: rows}
}

// Focus returns the focus customer, or the zero value when there is none.
func (a AttritionResult) Focus() Customer {
	if a.Customer == nil {
		return Customer{}
	}
	return *a.Customer
}

// SegmentLabel is the closed set of customer segments.
type SegmentLabel string

const (
	SegmentHighNetWorth    SegmentLabel = "High-Net-Worth"
	SegmentNewToBank       SegmentLabel = "New-to-Bank"
	SegmentServiceRecovery SegmentLabel = "Service-Recovery"
	SegmentMassAffluent    SegmentLabel = "Mass Affluent"
)

// SegmentSignals are the numeric inputs the segmentation rule looked at.
type SegmentSignals struct {
	AvgBalance    float64 `json:"avg_balance"`
	TenureMonths  int     `json:"tenure_months"`
	Complaints90d int     `json:"complaints_90d"`
}

type SegmentResult struct {
	Label   SegmentLabel   `json:"segment"`
	Signals SegmentSignals `json:"signals"`
}

// PipelineState is the per-turn record threaded through the four stages.
// Each stage writes only its own fields.
type PipelineState struct {
	// correlation id for logs and cost accounting; not read by any stage
	ConversationID string `json:"conversation_id,omitempty"`

	UserInput           string `json:"user_input"`
	CustomerID          string `json:"customer_id,omitempty"`
	ApproveEmail        bool   `json:"approve_email"`
	ApproveEmailContent string `json:"approve_email_content,omitempty"`

	Attrition      AttritionResult `json:"attrition"`
	Segment        SegmentResult   `json:"segment"`
	Offers         []Offer         `json:"offers"`
	ProductContext ProductContext  `json:"product_context"`
	SemanticHits   []SemanticHit   `json:"semantic_hits"`
	ResponseText   string          `json:"response_text"`
}
