package nodes

import (
	"context"

	"github.com/chative-genui/server/internal/agent/actions"
	"github.com/chative-genui/server/internal/agent/graph/conversations"
	"github.com/chative-genui/server/internal/agent/graph/gate"
	"github.com/chative-genui/server/internal/agent/graph/parsers"
	"github.com/chative-genui/server/internal/agent/graph/prompts"
	"github.com/chative-genui/server/internal/agent/graph/tools"
	"github.com/chative-genui/server/internal/agent/model"
	logx "github.com/chative-genui/server/pkg/logger"
)

const NodeRouter = "router"

// Route labels double as the supervisor node names of the agents.
const (
	RouteSearch      = "search"
	RouteStockbroker = "stockbroker"
	RouteOpenCode    = "openCode"
	RouteGeneral     = "general"
)

// Agents describes every route for the router and general prompts.
var Agents = []prompts.AgentDescription{
	{Label: RouteSearch, Desc: "can search the web for real-time information and provide relevant results. Use this when the user asks for current information or web search results."},
	{Label: RouteStockbroker, Desc: "can fetch the price of a ticker, buy a ticker, or get the user's portfolio."},
	{Label: RouteOpenCode, Desc: "can write a React TODO app for the user. Only use this if they request a TODO app."},
	{Label: RouteGeneral, Desc: "answers everything else directly."},
}

// RouteLabels returns the closed set of routes.
func RouteLabels() []string {
	out := make([]string, 0, len(Agents))
	for _, a := range Agents {
		out = append(out, a.Label)
	}
	return out
}

func knownRoute(label string) bool {
	for _, a := range Agents {
		if a.Label == label {
			return true
		}
	}
	return false
}

// Deps are the collaborators shared by the nodes.
type Deps struct {
	Models    *ChatModels
	Messages  *conversations.MessagesManager
	Search    *actions.SearchExecutor
	Market    *actions.Market
	Portfolio *actions.Portfolio
}

// NewRouterNode classifies the conversation into one route. A pending gate decision
// short-circuits to the gate's agent without a model call.
func NewRouterNode(d *Deps) (NodeFunc, error) {
	reg := tools.NewRegistry(tools.RouteTool(RouteLabels()))
	cm, err := d.Models.Router.WithTools(reg)
	if err != nil {
		return nil, err
	}
	ext, err := parsers.NewExtractor(reg)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, in *model.ConversationState) (*model.ConversationState, error) {
		s := in.ResetScratch()
		log := logx.Node(s.ConversationID, NodeRouter)

		if g, status, ok := gate.Pending(s, s.Messages); ok {
			log.Info().
				Str("correlation_id", g.ID).
				Str("decision", string(status)).
				Str("route", g.Subgraph).
				Msg("Routing gate decision to its agent")
			return s.Apply(model.Update{Next: g.Subgraph}), nil
		}

		if last := s.LastHumanMessage(); last != nil {
			log.Debug().Str("message_id", model.MessageID(last)).Int("length", len(last.Content)).Msg("Classifying")
		}
		sys, err := prompts.Render(ctx, prompts.Router, map[string]any{
			"RouteTool": tools.ToolRoute,
			"Agents":    Agents,
			"Fallback":  RouteGeneral,
		})
		if err != nil {
			return nil, err
		}
		msg, cost, err := stream(ctx, cm, NodeRouter, s, d.Messages.BuildContext(sys, s.Messages))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Msg("Router model failed, falling back to general")
			return s.Apply(model.Update{Next: RouteGeneral}), nil
		}

		route := ""
		for _, call := range ext.Extract(msg) {
			var args tools.RouteInput
			if err := call.DecodeArgs(&args); err == nil {
				route = args.Route
				break
			}
		}
		if !knownRoute(route) {
			log.Warn().Str("route", route).Msg("Router could not classify, falling back to general")
			route = RouteGeneral
		}
		log.Debug().Str("route", route).Msg("Routed")
		return s.Apply(model.Update{Next: route, CostUSD: cost}), nil
	}, nil
}

// RouteCondition picks the supervisor branch from the router's decision.
func RouteCondition(_ context.Context, s *model.ConversationState) (string, error) {
	if knownRoute(s.Next) {
		return s.Next, nil
	}
	return RouteGeneral, nil
}
