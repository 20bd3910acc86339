package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/chative-genui/server/internal/agent/graph/gate"
	"github.com/chative-genui/server/internal/agent/graph/parsers"
	"github.com/chative-genui/server/internal/agent/graph/prompts"
	"github.com/chative-genui/server/internal/agent/graph/tools"
	"github.com/chative-genui/server/internal/agent/model"
	"github.com/chative-genui/server/internal/agent/ui"
	logx "github.com/chative-genui/server/pkg/logger"
)

const (
	NodeCodePropose = "code_propose"
	NodeCodeReview  = "code_review"

	ComponentProposedChange = "proposed-change"
)

// NewCodeProposeNode asks the model for one file change and gates it behind the user's
// review, unless the session already granted full write access.
func NewCodeProposeNode(d *Deps) (NodeFunc, error) {
	reg := tools.NewRegistry(tools.UpdateFileTool())
	cm, err := d.Models.Agent.WithTools(reg)
	if err != nil {
		return nil, err
	}
	ext, err := parsers.NewExtractor(reg)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, s *model.ConversationState) (*model.ConversationState, error) {
		log := logx.Node(s.ConversationID, NodeCodePropose)
		sys, err := prompts.Render(ctx, prompts.OpenCode, map[string]any{
			"Tool":            tools.ToolUpdateFile,
			"FullWriteAccess": s.Permissions.FullWriteAccess,
		})
		if err != nil {
			return nil, err
		}
		msg, cost, err := stream(ctx, cm, NodeCodePropose, s, d.Messages.BuildContext(sys, s.Messages))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error().Err(err).Msg("Open code model failed")
			return s.Apply(model.Update{Messages: []*schema.Message{model.NewAIMessage(replyFailed)}}), nil
		}

		var (
			call model.ToolCall
			args tools.UpdateFileInput
		)
		found := false
		for _, c := range ext.Extract(msg) {
			if err := c.DecodeArgs(&args); err == nil {
				call, found = c, true
				break
			}
		}
		if !found {
			if hasContent(msg) {
				return s.Apply(model.Update{Messages: []*schema.Message{keepCalls(msg, nil)}, CostUSD: cost}), nil
			}
			return s.Apply(model.Update{CostUSD: cost}), nil
		}

		msg = keepCalls(msg, []model.ToolCall{call})
		s = s.Apply(model.Update{Messages: []*schema.Message{msg}, CostUSD: cost})

		g := gate.Open(ctx, s, &model.Gate{
			ID:        call.ID,
			Subgraph:  RouteOpenCode,
			Component: ComponentProposedChange,
			Action:    tools.ToolUpdateFile,
			Payload:   call.Args,
			MessageID: model.MessageID(msg),
		}, ui.Props{
			"toolCallId":      call.ID,
			"change":          args.Change,
			"planItem":        args.PlanItem,
			"fullWriteAccess": s.Permissions.FullWriteAccess,
		})

		if !s.Permissions.FullWriteAccess {
			return s.Apply(model.Update{Gates: []*model.Gate{g}, Code: &model.CodeScratch{GateID: g.ID}}), nil
		}

		log.Info().Str("correlation_id", g.ID).Msg("Full write access granted, accepting change")
		accepted, result := gate.Accept(ctx, g, tools.ToolUpdateFile)
		return s.Apply(model.Update{
			Messages: []*schema.Message{result, model.NewAIMessage(applied(args.PlanItem))},
			Gates:    []*model.Gate{accepted},
		}), nil
	}, nil
}

// NewCodeReviewNode applies or discards changes the user decided on.
func NewCodeReviewNode() NodeFunc {
	return func(ctx context.Context, s *model.ConversationState) (*model.ConversationState, error) {
		log := logx.Node(s.ConversationID, NodeCodeReview)
		decided := gate.Resolve(ctx, s, RouteOpenCode)

		var out []*schema.Message
		for _, g := range decided {
			var args tools.UpdateFileInput
			call := model.ToolCall{ID: g.ID, Name: g.Action, Args: g.Payload}
			if err := call.DecodeArgs(&args); err != nil {
				log.Warn().Err(err).Str("correlation_id", g.ID).Msg("Malformed change payload")
			}
			if g.Status == model.GateAccepted {
				out = append(out, model.NewAIMessage(applied(args.PlanItem)))
			} else {
				out = append(out, model.NewAIMessage(fmt.Sprintf("Discarded the proposed change for %q.", args.PlanItem)))
			}
		}
		return s.Apply(model.Update{Messages: out, Gates: decided}), nil
	}
}

// CodeEntry sends decided change gates to review, everything else to propose.
func CodeEntry(_ context.Context, s *model.ConversationState) (string, error) {
	if g, _, ok := gate.Pending(s, s.Messages); ok && g.Subgraph == RouteOpenCode {
		return NodeCodeReview, nil
	}
	return NodeCodePropose, nil
}

func applied(planItem string) string {
	return fmt.Sprintf("Applied the proposed change for %q.", planItem)
}
