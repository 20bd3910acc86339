package nodes

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/chative-genui/server/internal/agent/graph/prompts"
	"github.com/chative-genui/server/internal/agent/model"
	logx "github.com/chative-genui/server/pkg/logger"
)

const NodeGeneral = "general_reply"

// NewGeneralNode streams a plain reply that describes what the app can do.
func NewGeneralNode(d *Deps) NodeFunc {
	return func(ctx context.Context, s *model.ConversationState) (*model.ConversationState, error) {
		log := logx.Node(s.ConversationID, NodeGeneral)
		sys, err := prompts.Render(ctx, prompts.General, map[string]any{"Agents": Agents})
		if err != nil {
			return nil, err
		}
		msg, cost, err := stream(ctx, d.Models.Agent, NodeGeneral, s, d.Messages.BuildContext(sys, s.Messages))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error().Err(err).Msg("General reply failed")
			return s.Apply(model.Update{Messages: []*schema.Message{model.NewAIMessage(replyFailed)}}), nil
		}
		if msg != nil {
			msg.ToolCalls = nil
		}
		if !hasContent(msg) {
			return s.Apply(model.Update{CostUSD: cost}), nil
		}
		return s.Apply(model.Update{Messages: []*schema.Message{msg}, CostUSD: cost}), nil
	}
}

const replyFailed = "Sorry, I couldn't generate a reply. Please try again."
