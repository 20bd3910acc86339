package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Pricing is the USD cost per 1M text tokens.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

var pricing = map[string]Pricing{
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
	"gemini-2.5-pro":        {InputPerM: 1.25, OutputPerM: 10.00},
	"gemini-2.0-flash":      {InputPerM: 0.10, OutputPerM: 0.40},
}

// UsageCost is the priced token usage of one model call.
type UsageCost struct {
	Model            string  `json:"model"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	InputCost        float64 `json:"input_cost"`
	OutputCost       float64 `json:"output_cost"`
	TotalCost        float64 `json:"total_cost"`
}

// ResolvePricing looks up a model, tolerating a "models/" prefix and dated or
// "-preview" suffixes. Unknown models cost zero.
func ResolvePricing(name string) (Pricing, bool) {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "models/")
	if p, ok := pricing[name]; ok {
		return p, true
	}
	best := ""
	for known := range pricing {
		if strings.HasPrefix(name, known+"-") && len(known) > len(best) {
			best = known
		}
	}
	if best == "" {
		return Pricing{}, false
	}
	return pricing[best], true
}

// PriceUsage converts token usage of modelName to USD. A nil usage returns a zero cost.
func PriceUsage(modelName string, usage *schema.TokenUsage) UsageCost {
	if usage == nil {
		return UsageCost{Model: modelName}
	}
	p, _ := ResolvePricing(modelName)
	c := UsageCost{
		Model:            modelName,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		InputCost:        p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0,
		OutputCost:       p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0,
	}
	c.TotalCost = c.InputCost + c.OutputCost
	return c
}
