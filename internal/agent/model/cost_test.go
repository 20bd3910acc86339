package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestResolvePricing(t *testing.T) {
	p, ok := ResolvePricing("models/gemini-2.5-flash")
	assert.True(t, ok)
	assert.Equal(t, 0.30, p.InputPerM)

	p, ok = ResolvePricing("gemini-2.5-flash-lite-preview-06-17")
	assert.True(t, ok)
	assert.Equal(t, 0.10, p.InputPerM, "longest known prefix wins")

	_, ok = ResolvePricing("gpt-4o")
	assert.False(t, ok)
}

func TestPriceUsage(t *testing.T) {
	c := PriceUsage("gemini-2.5-flash", &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 200_000, TotalTokens: 1_200_000})
	assert.InDelta(t, 0.30, c.InputCost, 1e-9)
	assert.InDelta(t, 0.50, c.OutputCost, 1e-9)
	assert.InDelta(t, 0.80, c.TotalCost, 1e-9)

	assert.Zero(t, PriceUsage("unknown", &schema.TokenUsage{PromptTokens: 10}).TotalCost)
	assert.Zero(t, PriceUsage("gemini-2.5-flash", nil).TotalCost)
}
