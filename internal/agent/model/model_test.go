package model

import (
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestResolvePricing(t *testing.T) {
	assert.Equal(t, Pricing{InputPerM: 0.30, OutputPerM: 2.50}, ResolvePricing("gemini-2.5-flash"))
	assert.Equal(t, Pricing{InputPerM: 0.30, OutputPerM: 2.50}, ResolvePricing("models/gemini-2.5-flash"))
	assert.Equal(t, Pricing{}, ResolvePricing("unknown"))
}

func TestComputeCost(t *testing.T) {
	in, out, total := ComputeCost(&schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 500_000}, Pricing{InputPerM: 1, OutputPerM: 4})
	assert.InDelta(t, 1.0, in, 1e-9)
	assert.InDelta(t, 2.0, out, 1e-9)
	assert.InDelta(t, 3.0, total, 1e-9)

	in, out, total = ComputeCost(nil, Pricing{InputPerM: 1})
	assert.Zero(t, in+out+total)
}

func TestAttritionConstructors(t *testing.T) {
	c := Customer{ID: "C1", Name: "Ana", ChurnRiskScore: 0.9}
	single := SingleAttrition(c)
	assert.Equal(t, AttritionSingle, single.Mode)
	assert.Equal(t, "C1", single.Focus().ID)
	assert.Nil(t, single.Ranked)

	empty := RankedAttrition(nil, nil)
	assert.Equal(t, AttritionRankedList, empty.Mode)
	assert.NotNil(t, empty.Ranked)
	assert.Empty(t, empty.Ranked)
	assert.Equal(t, Customer{}, empty.Focus())
}

func TestOfferApplies(t *testing.T) {
	o := Offer{Segments: []string{"Mass Affluent"}, Reasons: []string{"fees"}}
	assert.True(t, o.AppliesToSegment("Mass Affluent"))
	assert.False(t, o.AppliesToSegment("New-to-Bank"))
	assert.True(t, o.AppliesToReason("fees"))
	assert.False(t, o.AppliesToReason("rates"))
}

func TestEventIsMessage(t *testing.T) {
	assert.True(t, Event{Type: EventUserMessage}.IsMessage())
	assert.True(t, Event{Type: EventAssistantMessage}.IsMessage())
	assert.False(t, Event{Type: EventPIIRedaction}.IsMessage())
}

func TestConversationTTLDuration(t *testing.T) {
	assert.Equal(t, 15*time.Minute, ConversationConfig{TTL: "15m"}.TTLDuration())
	assert.Equal(t, 24*time.Hour, ConversationConfig{TTL: "soon"}.TTLDuration())
}
