package model

import (
	"github.com/chative-genui/server/pkg/financialdatasets"
	"github.com/chative-genui/server/pkg/tavily"
)

type (
	SearchHit = tavily.Result
	Price     = financialdatasets.Price
	Snapshot  = financialdatasets.Snapshot
)

// PriceHistory is the stock price executor's success value.
type PriceHistory struct {
	Ticker          string  `json:"ticker"`
	LatestDate      string  `json:"latestDate"`
	OneDayPrices    []Price `json:"oneDayPrices"`
	ThirtyDayPrices []Price `json:"thirtyDayPrices"`
	// Degraded is set when OneDayPrices was derived from the 30-day series.
	Degraded bool `json:"degraded,omitempty"`
	// Truncated is set when pagination stopped before the upstream ran out of pages.
	Truncated bool `json:"truncated,omitempty"`
}

// Holding is one portfolio position.
type Holding struct {
	Ticker   string  `json:"ticker"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avgPrice"`
}
