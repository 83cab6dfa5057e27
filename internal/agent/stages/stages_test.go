package stages

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retention-intel/server/internal/agent/model"
	"github.com/retention-intel/server/internal/retrieval"
)

var table = []model.Customer{
	{ID: "C1", Name: "Ana", Email: "ana@x.com", Segment: "Mass Affluent", Product: "Card", ChurnRiskScore: 0.50, Reason: "fees", AvgBalance: 20_000, TenureMonths: 30},
	{ID: "C2", Name: "Ben", Email: "ben@x.com", Segment: "High-Net-Worth", Product: "Savings", ChurnRiskScore: 0.90, Reason: "rates", AvgBalance: 300_000, TenureMonths: 80},
	{ID: "C3", Name: "Cy", Email: "cy@x.com", Segment: "New-to-Bank", Product: "Card", ChurnRiskScore: 0.70, Reason: "service", TenureMonths: 3, Complaints90d: 4},
	{ID: "C4", Name: "Di", Email: "di@x.com", Segment: "Mass Affluent", Product: "Card", ChurnRiskScore: 0.70, Reason: "", TenureMonths: 40, Complaints90d: 2},
}

func rankedIDs(rows []model.RankedCustomer) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.CustomerID
	}
	return ids
}

func TestParseTopN(t *testing.T) {
	tests := map[string]int{
		"top 3 at risk customers":  3,
		"Show me TOP   5":          5,
		"top 0":                    DefaultTopN,
		"who is at risk":           DefaultTopN,
		"top 99999999999999999999": DefaultTopN,
		"laptop 4":                 4,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseTopN(in))
		})
	}
}

func TestLookupAttritionSingle(t *testing.T) {
	res := LookupAttrition(table, "draft an email", "C3")
	assert.Equal(t, model.AttritionSingle, res.Mode)
	assert.Equal(t, "Cy", res.Focus().Name)
	assert.Nil(t, res.Ranked)
}

func TestLookupAttritionRanked(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		customerID string
		want       []string
	}{
		{"top n with stable ties", "top 3 at risk customers", "", []string{"C2", "C3", "C4"}},
		{"n larger than table", "top 10", "", []string{"C2", "C3", "C4", "C1"}},
		{"unknown id falls back", "hello", "nope", []string{"C2", "C3", "C4", "C1"}},
		{"top 1", "top 1", "", []string{"C2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := LookupAttrition(table, tt.input, tt.customerID)
			require.Equal(t, model.AttritionRankedList, res.Mode)
			assert.Equal(t, tt.want, rankedIDs(res.Ranked))
			require.NotNil(t, res.Customer)
			assert.Equal(t, 300_000.0, res.Customer.AvgBalance)
		})
	}
}

func TestLookupAttritionEmptyTable(t *testing.T) {
	res := LookupAttrition(nil, "top 3", "")
	assert.Equal(t, model.AttritionRankedList, res.Mode)
	assert.Empty(t, res.Ranked)
	assert.Nil(t, res.Customer)
}

func TestRankAtRiskDoesNotMutateInput(t *testing.T) {
	in := append([]model.Customer(nil), table...)
	_ = RankAtRisk(in, 2)
	assert.Equal(t, table, in)
}

func TestSegment(t *testing.T) {
	tests := []struct {
		name string
		c    model.Customer
		want model.SegmentLabel
	}{
		{"balance wins over tenure", model.Customer{AvgBalance: 100_000, TenureMonths: 1, Complaints90d: 9}, model.SegmentHighNetWorth},
		{"new to bank", model.Customer{AvgBalance: 99_999, TenureMonths: 11, Complaints90d: 5}, model.SegmentNewToBank},
		{"service recovery", model.Customer{TenureMonths: 12, Complaints90d: 2}, model.SegmentServiceRecovery},
		{"mass affluent", model.Customer{TenureMonths: 12, Complaints90d: 1}, model.SegmentMassAffluent},
		{"zero record", model.Customer{}, model.SegmentNewToBank},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Segment(tt.c)
			assert.Equal(t, tt.want, res.Label)
			assert.Equal(t, tt.c.AvgBalance, res.Signals.AvgBalance)
		})
	}
}

var offers = []model.Offer{
	{ID: "O1", Segments: []string{"Mass Affluent"}, Reasons: []string{"fees"}},
	{ID: "O2", Segments: []string{"Mass Affluent"}, Reasons: []string{"rates"}},
	{ID: "O3", Segments: []string{"Mass Affluent", "High-Net-Worth"}, Reasons: []string{"fees"}},
	{ID: "O4", Segments: []string{"Mass Affluent"}, Reasons: []string{"service"}},
	{ID: "O5", Segments: []string{"Mass Affluent"}, Reasons: []string{"fees"}},
	{ID: "O6", Segments: []string{"Mass Affluent"}, Reasons: []string{"fees"}},
}

func offerIDs(os []model.Offer) []string {
	ids := make([]string, len(os))
	for i, o := range os {
		ids[i] = o.ID
	}
	return ids
}

func TestMatchOffers(t *testing.T) {
	assert.Equal(t, []string{"O1", "O3", "O5"}, offerIDs(MatchOffers(offers, model.SegmentMassAffluent, "fees")))
	assert.Equal(t, []string{"O3"}, offerIDs(MatchOffers(offers, model.SegmentHighNetWorth, "rates")))
	assert.Equal(t, []string{"O1", "O2", "O3"}, offerIDs(MatchOffers(offers, model.SegmentMassAffluent, "relocation")))

	none := MatchOffers(offers, model.SegmentNewToBank, "fees")
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestProductContextFor(t *testing.T) {
	catalog := model.ProductCatalog{"Card": {"annual_fee": 95.0}}
	assert.Equal(t, model.ProductContext{"annual_fee": 95.0}, ProductContextFor(catalog, "Card"))
	got := ProductContextFor(catalog, "Unknown")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

type fakeSearcher struct {
	hits    []retrieval.Hit
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, q string, _ int) ([]retrieval.Hit, error) {
	f.queries = append(f.queries, q)
	return f.hits, f.err
}

func TestAssembleEvidence(t *testing.T) {
	s := &fakeSearcher{hits: []retrieval.Hit{{Item: retrieval.CorpusItem{ID: "K1", Kind: model.HitKnowledge}, Score: 0.8}}}
	ev := AssembleEvidence(context.Background(), Segment(table[0]), table[0], offers, model.ProductCatalog{}, s, 3)

	assert.Equal(t, []string{"fees Mass Affluent Card"}, s.queries)
	assert.Equal(t, []string{"O1", "O3", "O5"}, offerIDs(ev.Offers))
	want := []model.SemanticHit{{ID: "K1", Kind: model.HitKnowledge, Score: 0.8}}
	if diff := cmp.Diff(want, ev.SemanticHits); diff != "" {
		t.Errorf("hits mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleEvidenceDegradesOnSearchError(t *testing.T) {
	s := &fakeSearcher{err: errors.New("embedder down")}
	ev := AssembleEvidence(context.Background(), Segment(table[3]), table[3], offers, nil, s, 3)

	assert.Equal(t, []string{"general Service-Recovery Card"}, s.queries)
	assert.NotNil(t, ev.SemanticHits)
	assert.Empty(t, ev.SemanticHits)
	assert.Empty(t, ev.Offers)
	assert.Empty(t, ev.ProductContext)
}

type countingModel struct {
	content string
	err     error
	calls   atomic.Int32
	last    []*schema.Message
}

func (m *countingModel) Generate(_ context.Context, msgs []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.calls.Add(1)
	m.last = msgs
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.content, nil), nil
}

func (m *countingModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func singleState(input string) *model.PipelineState {
	c := table[0]
	return &model.PipelineState{
		UserInput: input,
		Attrition: model.SingleAttrition(c),
		Segment:   Segment(c),
	}
}

func TestGenerateApprovalOverride(t *testing.T) {
	m := &countingModel{content: "unused"}
	s := singleState("top 3 please")
	s.ApproveEmail = true
	s.ApproveEmailContent = "Dear Ana, thank you."

	got := NewGenerator(m).Generate(context.Background(), s)
	assert.Equal(t, "Approval recorded. Here is the final email content:\n\nemail_draft:\nDear Ana, thank you.", got.Text)
	assert.Equal(t, SourceApproval, got.Source)
	assert.Zero(t, m.calls.Load())
}

func TestGenerateApprovalNeedsContent(t *testing.T) {
	m := &countingModel{content: "retention_summary: ok"}
	s := singleState("hello")
	s.ApproveEmail = true

	got := NewGenerator(m).Generate(context.Background(), s)
	assert.Equal(t, SourceModel, got.Source)
	assert.EqualValues(t, 1, m.calls.Load())
}

func TestGenerateRankedTable(t *testing.T) {
	m := &countingModel{}
	s := &model.PipelineState{UserInput: "top 3 at risk customers", Attrition: LookupAttrition(table, "top 3 at risk customers", "")}

	got := NewGenerator(m).Generate(context.Background(), s)
	want := strings.Join([]string{
		"| Rank | Customer | Segment | Risk | Reason | Email |",
		"|---|---|---|---|---|---|",
		"| 1 | Ben (C2) | High-Net-Worth | 0.90 | rates | ben@x.com |",
		"| 2 | Cy (C3) | New-to-Bank | 0.70 | service | cy@x.com |",
		"| 3 | Di (C4) | Mass Affluent | 0.70 |  | di@x.com |",
	}, "\n")
	assert.Equal(t, want, got.Text)
	assert.Equal(t, SourceTable, got.Source)
	assert.Zero(t, m.calls.Load())
}

func TestGenerateRankedWithoutListingUsesModel(t *testing.T) {
	m := &countingModel{content: "retention_summary: x"}
	s := &model.PipelineState{UserInput: "who should we call", Attrition: LookupAttrition(table, "", "")}

	got := NewGenerator(m).Generate(context.Background(), s)
	assert.Equal(t, SourceModel, got.Source)
	require.Len(t, m.last, 1)
	assert.Contains(t, m.last[0].Content, `"customer_id":"C2"`)
}

func TestGenerateModelAndFallback(t *testing.T) {
	tests := []struct {
		name   string
		model  *countingModel
		input  string
		want   string
		source GenerationSource
	}{
		{"model output", &countingModel{content: "retention_summary: a\nemail_draft: b"}, "draft an email", "retention_summary: a\nemail_draft: b", SourceModel},
		{"email placeholder appended", &countingModel{content: "retention_summary: a"}, "please send something", "retention_summary: a" + emailPlaceholder, SourceModel},
		{"redacted address is not an email request", &countingModel{content: "retention_summary: a"}, "my contact is [REDACTED_EMAIL], what offers fit this customer?", "retention_summary: a", SourceModel},
		{"explicit request next to redacted address", &countingModel{content: "retention_summary: a"}, "email me at [REDACTED_EMAIL]", "retention_summary: a" + emailPlaceholder, SourceModel},
		{"case insensitive section check", &countingModel{content: "EMAIL_DRAFT: hi"}, "email", "EMAIL_DRAFT: hi", SourceModel},
		{"call error", &countingModel{err: errors.New("503")}, "summarize", FallbackResponse, SourceFallback},
		{"empty output", &countingModel{content: "   "}, "summarize", FallbackResponse, SourceFallback},
		{"fallback already has email", &countingModel{err: errors.New("503")}, "draft an email", FallbackResponse, SourceFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewGenerator(tt.model, WithModelName("gemini-2.5-flash")).Generate(context.Background(), singleState(tt.input))
			assert.Equal(t, tt.want, got.Text)
			assert.Equal(t, tt.source, got.Source)
		})
	}
}

func TestIntentIgnoresRedactionPlaceholders(t *testing.T) {
	assert.False(t, WantsEmail("reach me at [REDACTED_EMAIL] or [REDACTED_PHONE]"))
	assert.True(t, WantsEmail("send it to [REDACTED_EMAIL]"))
	assert.False(t, WantsListing("card [REDACTED_CREDIT_CARD] was declined"))
	assert.True(t, WantsListing("top 5 please"))
}

func TestGenerateWithoutModelFallsBack(t *testing.T) {
	got := NewGenerator(nil).Generate(context.Background(), singleState("hi"))
	assert.Equal(t, FallbackResponse, got.Text)
}
