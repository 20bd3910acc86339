package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/chative-genui/server/internal/agent/actions"
	"github.com/chative-genui/server/internal/agent/graph/gate"
	"github.com/chative-genui/server/internal/agent/graph/parsers"
	"github.com/chative-genui/server/internal/agent/graph/prompts"
	"github.com/chative-genui/server/internal/agent/graph/tools"
	"github.com/chative-genui/server/internal/agent/model"
	"github.com/chative-genui/server/internal/agent/ui"
	logx "github.com/chative-genui/server/pkg/logger"
)

const (
	NodeStockPrepare = "stock_prepare"
	NodeStockAct     = "stock_act"
	NodeStockConfirm = "stock_confirm"

	ComponentStockPrice = "stock-price"
	ComponentPortfolio  = "portfolio"
	ComponentBuyStock   = "buy-stock"
)

// NewStockPrepareNode lets the model pick stockbroker tools.
func NewStockPrepareNode(d *Deps) (NodeFunc, error) {
	reg := tools.StockbrokerTools()
	cm, err := d.Models.Agent.WithTools(reg)
	if err != nil {
		return nil, err
	}
	ext, err := parsers.NewExtractor(reg)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, s *model.ConversationState) (*model.ConversationState, error) {
		log := logx.Node(s.ConversationID, NodeStockPrepare)
		sys, err := prompts.Render(ctx, prompts.Stockbroker, map[string]any{
			"PriceTool":     tools.ToolStockPrice,
			"PortfolioTool": tools.ToolPortfolio,
			"BuyTool":       tools.ToolBuyStock,
		})
		if err != nil {
			return nil, err
		}
		msg, cost, err := stream(ctx, cm, NodeStockPrepare, s, d.Messages.BuildContext(sys, s.Messages))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error().Err(err).Msg("Stockbroker model failed")
			return s.Apply(model.Update{Messages: []*schema.Message{model.NewAIMessage(replyFailed)}}), nil
		}

		calls := ext.Extract(msg)
		if len(calls) == 0 {
			if hasContent(msg) {
				return s.Apply(model.Update{Messages: []*schema.Message{keepCalls(msg, nil)}, CostUSD: cost}), nil
			}
			return s.Apply(model.Update{CostUSD: cost}), nil
		}

		msg = keepCalls(msg, calls)
		log.Debug().Int("tool_count", len(calls)).Msg("Calling tools")
		return s.Apply(model.Update{
			Messages: []*schema.Message{msg},
			Stock:    &model.StockScratch{MessageID: model.MessageID(msg), Calls: calls},
			CostUSD:  cost,
		}), nil
	}, nil
}

// NewStockActNode executes the extracted calls. Purchases open a gate instead of
// executing; every other call is answered with a tool result.
func NewStockActNode(d *Deps) NodeFunc {
	return func(ctx context.Context, s *model.ConversationState) (*model.ConversationState, error) {
		if s.Stock == nil || len(s.Stock.Calls) == 0 {
			return s, nil
		}
		log := logx.Node(s.ConversationID, NodeStockAct)
		push := ui.FromContext(ctx).Push
		msgID := s.Stock.MessageID

		var (
			out      []*schema.Message
			gates    []*model.Gate
			failures []string
		)
		for _, call := range s.Stock.Calls {
			switch call.Name {
			case tools.ToolStockPrice:
				var args tools.StockPriceInput
				if err := call.DecodeArgs(&args); err != nil {
					log.Warn().Err(err).Msg("Skipping stock-price call")
					out = append(out, toolResult(call, map[string]any{"success": false}))
					continue
				}
				res := d.Market.PriceHistory(ctx, args.Ticker)
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if !res.OK() {
					push(ui.Event{ID: uuid.NewString(), Name: ComponentStockPrice, MessageID: msgID, Merge: ui.Replace, Status: ui.StatusError,
						Props: ui.Props{"ticker": args.Ticker, "error": res.Reason}})
					out = append(out, toolResult(call, map[string]any{"success": false, "error": res.Reason}))
					failures = append(failures, res.Reason)
					continue
				}
				h := res.Value
				push(ui.Event{ID: uuid.NewString(), Name: ComponentStockPrice, MessageID: msgID, Merge: ui.Replace, Status: ui.StatusSuccess,
					Props: ui.Props{"ticker": h.Ticker, "oneDayPrices": h.OneDayPrices, "thirtyDayPrices": h.ThirtyDayPrices}})
				out = append(out, toolResult(call, priceSummary(h)))

			case tools.ToolPortfolio:
				res := d.Portfolio.Holdings(ctx, s.ConversationID)
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if !res.OK() {
					push(ui.Event{ID: uuid.NewString(), Name: ComponentPortfolio, MessageID: msgID, Merge: ui.Replace, Status: ui.StatusError,
						Props: ui.Props{"error": res.Reason}})
					out = append(out, toolResult(call, map[string]any{"success": false, "error": res.Reason}))
					failures = append(failures, res.Reason)
					continue
				}
				push(ui.Event{ID: uuid.NewString(), Name: ComponentPortfolio, MessageID: msgID, Merge: ui.Replace, Status: ui.StatusSuccess,
					Props: ui.Props{"holdings": res.Value}})
				out = append(out, toolResult(call, map[string]any{"success": true, "holdings": res.Value}))

			case tools.ToolBuyStock:
				var args tools.BuyStockInput
				if err := call.DecodeArgs(&args); err != nil {
					log.Warn().Err(err).Msg("Skipping buy-stock call")
					out = append(out, toolResult(call, map[string]any{"success": false}))
					continue
				}
				res := d.Portfolio.Propose(ctx, args.Ticker, args.Quantity)
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if !res.OK() {
					push(ui.Event{ID: call.ID, Name: ComponentBuyStock, MessageID: msgID, Merge: ui.Replace, Status: ui.StatusError,
						Props: ui.Props{"toolCallId": call.ID, "error": res.Reason}})
					out = append(out, toolResult(call, map[string]any{"success": false, "error": res.Reason}))
					failures = append(failures, res.Reason)
					continue
				}
				payload, _ := json.Marshal(res.Value)
				g := gate.Open(ctx, s, &model.Gate{
					ID:        call.ID,
					Subgraph:  RouteStockbroker,
					Component: ComponentBuyStock,
					Action:    tools.ToolBuyStock,
					Payload:   payload,
					MessageID: msgID,
				}, ui.Props{"toolCallId": call.ID, "snapshot": res.Value.Snapshot, "quantity": res.Value.Quantity})
				gates = append(gates, g)
			}
		}

		for _, reason := range failures {
			out = append(out, model.NewAIMessage(reason))
		}
		return s.Apply(model.Update{Messages: out, Gates: gates}), nil
	}
}

// NewStockConfirmNode settles buy gates decided by the user.
func NewStockConfirmNode(d *Deps) NodeFunc {
	return func(ctx context.Context, s *model.ConversationState) (*model.ConversationState, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := logx.Node(s.ConversationID, NodeStockConfirm)
		decided := gate.Resolve(ctx, s, RouteStockbroker)

		var out []*schema.Message
		for _, g := range decided {
			var proposal actions.BuyProposal
			if err := json.Unmarshal(g.Payload, &proposal); err != nil {
				log.Error().Err(err).Str("correlation_id", g.ID).Msg("Malformed buy proposal")
				out = append(out, model.NewAIMessage("Sorry, I lost track of that order. Please ask again."))
				continue
			}
			if g.Status == model.GateRejected {
				out = append(out, model.NewAIMessage(fmt.Sprintf("Okay, I won't buy %s.", proposal.Ticker)))
				continue
			}
			res := d.Portfolio.Buy(ctx, s.ConversationID, proposal)
			if !res.OK() {
				out = append(out, model.NewAIMessage(res.Reason))
				continue
			}
			out = append(out, model.NewAIMessage(fmt.Sprintf(
				"Bought %g shares of %s at $%.2f. You now hold %g shares.",
				proposal.Quantity, proposal.Ticker, proposal.Snapshot.Price, res.Value.Quantity)))
		}
		return s.Apply(model.Update{Messages: out, Gates: decided}), nil
	}
}

// StockEntry sends decided buy gates to confirmation, everything else to prepare.
func StockEntry(_ context.Context, s *model.ConversationState) (string, error) {
	if g, _, ok := gate.Pending(s, s.Messages); ok && g.Subgraph == RouteStockbroker {
		return NodeStockConfirm, nil
	}
	return NodeStockPrepare, nil
}

// StockHasCalls continues to execution only when prepare extracted tool calls.
func StockHasCalls(_ context.Context, s *model.ConversationState) (string, error) {
	if s.Stock == nil || len(s.Stock.Calls) == 0 {
		return compose.END, nil
	}
	return NodeStockAct, nil
}

func priceSummary(h model.PriceHistory) map[string]any {
	out := map[string]any{
		"success":    true,
		"ticker":     h.Ticker,
		"latestDate": h.LatestDate,
		"degraded":   h.Degraded,
		"truncated":  h.Truncated,
	}
	if n := len(h.OneDayPrices); n > 0 {
		out["lastClose"] = h.OneDayPrices[n-1].Close
	} else if n := len(h.ThirtyDayPrices); n > 0 {
		out["lastClose"] = h.ThirtyDayPrices[n-1].Close
	}
	return out
}
