// Package tools declares the closed set of tools the agents may call.
package tools

import (
	"sort"

	"github.com/cloudwego/eino/schema"
)

const (
	ToolExtractSearchQuery = "extract_search_query"
	ToolStockPrice         = "stock-price"
	ToolPortfolio          = "portfolio"
	ToolBuyStock           = "buy-stock"
	ToolUpdateFile         = "update_file"
	ToolRoute              = "route"
)

// Definition pairs a tool's model-facing info with its argument shape.
type Definition struct {
	Info   *schema.ToolInfo
	Params map[string]*schema.ParameterInfo
}

func define(name, desc string, params map[string]*schema.ParameterInfo) Definition {
	return Definition{
		Info: &schema.ToolInfo{
			Name:        name,
			Desc:        desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		},
		Params: params,
	}
}

// Registry maps tool names to definitions. Lookups are exact-match.
type Registry map[string]Definition

func NewRegistry(defs ...Definition) Registry {
	r := make(Registry, len(defs))
	for _, d := range defs {
		r[d.Info.Name] = d
	}
	return r
}

func (r Registry) Lookup(name string) (Definition, bool) {
	d, ok := r[name]
	return d, ok
}

// Infos returns the tool infos sorted by name, ready to bind to a chat model.
func (r Registry) Infos() []*schema.ToolInfo {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*schema.ToolInfo, 0, len(names))
	for _, n := range names {
		out = append(out, r[n].Info)
	}
	return out
}

// ===================================
// Search
// ===================================

type SearchQueryInput struct {
	Query string `json:"query"`
}

func SearchQueryTool() Definition {
	return define(ToolExtractSearchQuery,
		"Extract and optimize a search query from the user's message",
		map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "The optimized search query to use", Required: true},
		})
}

// ===================================
// Stockbroker
// ===================================

type StockPriceInput struct {
	Ticker string `json:"ticker"`
}

type PortfolioInput struct {
	GetPortfolio bool `json:"get_portfolio"`
}

type BuyStockInput struct {
	Ticker   string  `json:"ticker"`
	Quantity float64 `json:"quantity"`
}

func StockPriceTool() Definition {
	return define(ToolStockPrice,
		"A tool to get the stock price of a company",
		map[string]*schema.ParameterInfo{
			"ticker": {Type: schema.String, Desc: "The ticker symbol of the company", Required: true},
		})
}

func PortfolioTool() Definition {
	return define(ToolPortfolio,
		"A tool to get the user's portfolio details. Only call this tool if the user requests their portfolio details.",
		map[string]*schema.ParameterInfo{
			"get_portfolio": {Type: schema.Boolean, Desc: "Should be true.", Required: true},
		})
}

func BuyStockTool() Definition {
	return define(ToolBuyStock,
		"A tool to buy a stock",
		map[string]*schema.ParameterInfo{
			"ticker":   {Type: schema.String, Desc: "The ticker symbol of the company", Required: true},
			"quantity": {Type: schema.Number, Desc: "The quantity of the stock to buy", Required: true},
		})
}

func StockbrokerTools() Registry {
	return NewRegistry(StockPriceTool(), PortfolioTool(), BuyStockTool())
}

// ===================================
// Open code
// ===================================

type UpdateFileInput struct {
	PlanItem string `json:"plan_item"`
	Change   string `json:"change"`
}

func UpdateFileTool() Definition {
	return define(ToolUpdateFile,
		"Propose a change to a file of the user's project. The change is applied only after the user accepts it.",
		map[string]*schema.ParameterInfo{
			"plan_item": {Type: schema.String, Desc: "The plan item this change implements", Required: true},
			"change":    {Type: schema.String, Desc: "The full proposed file content or diff", Required: true},
		})
}

// ===================================
// Router
// ===================================

type RouteInput struct {
	Route string `json:"route"`
}

// RouteTool constrains the router to one of labels.
func RouteTool(labels []string) Definition {
	return define(ToolRoute,
		"The route to take based on the user's input.",
		map[string]*schema.ParameterInfo{
			"route": {Type: schema.String, Desc: "The agent that should handle the conversation", Enum: labels, Required: true},
		})
}
