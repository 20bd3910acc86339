// Package gate implements the human approval protocol: a proposed side effect waits,
// across invocations, for a tool result carrying one of two sentinel strings.
package gate

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/eino/schema"

	"github.com/chative-genui/server/internal/agent/model"
	"github.com/chative-genui/server/internal/agent/ui"
	logx "github.com/chative-genui/server/pkg/logger"
)

const (
	AcceptedSentinel = "User accepted the proposed change. Please continue."
	RejectedSentinel = "User rejected the proposed change. Please continue."
)

// Decision maps a tool result's content to a gate status. Anything but an exact sentinel
// is not a decision.
func Decision(content string) (model.GateStatus, bool) {
	switch content {
	case AcceptedSentinel:
		return model.GateAccepted, true
	case RejectedSentinel:
		return model.GateRejected, true
	}
	return "", false
}

// Sentinel returns the tool result content for a decided status.
func Sentinel(status model.GateStatus) string {
	if status == model.GateAccepted {
		return AcceptedSentinel
	}
	return RejectedSentinel
}

// Open records a proposed gate and pushes its UI event keyed by the gate id. A gate that
// already exists is returned unchanged and nothing is pushed.
func Open(ctx context.Context, state *model.ConversationState, g *model.Gate, props ui.Props) *model.Gate {
	if prev, ok := state.Gates[g.ID]; ok {
		logx.Warn().
			Str("correlation_id", g.ID).
			Str("status", string(prev.Status)).
			Msg("Gate already exists, not re-proposing")
		return prev
	}
	out := *g
	out.Status = model.GateProposed
	if out.Payload == nil {
		if b, err := json.Marshal(props); err == nil {
			out.Payload = b
		}
	}
	ui.FromContext(ctx).Push(ui.Event{
		ID:        out.ID,
		Name:      out.Component,
		Props:     props,
		MessageID: out.MessageID,
		Merge:     ui.Replace,
		Status:    ui.StatusProposed,
	})
	return &out
}

// Pending returns the proposed gate answered by a decision in msgs, if any. When one gate
// is answered more than once the earliest decision is reported, matching Resolve.
func Pending(state *model.ConversationState, msgs []*schema.Message) (*model.Gate, model.GateStatus, bool) {
	for _, m := range msgs {
		if m == nil || m.Role != schema.Tool {
			continue
		}
		g, ok := state.Gates[m.ToolCallID]
		if !ok || g.Status.Terminal() {
			continue
		}
		if status, ok := Decision(m.Content); ok {
			return g, status, true
		}
	}
	return nil, "", false
}

// Resolve decides every proposed gate of subgraph answered in the conversation and pushes
// the terminal UI event for each. The first decision for a gate wins; later ones are
// ignored. Gates without a decision stay proposed.
func Resolve(ctx context.Context, state *model.ConversationState, subgraph string) []*model.Gate {
	var decided []*model.Gate
	seen := map[string]bool{}
	for _, m := range state.Messages {
		if m == nil || m.Role != schema.Tool {
			continue
		}
		g, ok := state.Gates[m.ToolCallID]
		if !ok || g.Subgraph != subgraph || g.Status.Terminal() {
			continue
		}
		status, ok := Decision(m.Content)
		if !ok {
			continue
		}
		if seen[g.ID] {
			logx.Warn().
				Str("conversation_id", state.ConversationID).
				Str("correlation_id", g.ID).
				Str("ignored", string(status)).
				Msg("Gate already decided in this turn, ignoring later decision")
			continue
		}
		seen[g.ID] = true
		out := g.Decided(status)
		uiStatus := ui.StatusRejected
		if status == model.GateAccepted {
			uiStatus = ui.StatusAccepted
		}
		ui.FromContext(ctx).Push(ui.Event{
			ID:        out.ID,
			Name:      out.Component,
			Props:     ui.Props{"status": string(status)},
			MessageID: out.MessageID,
			Merge:     ui.Merge,
			Status:    uiStatus,
		})
		logx.Info().
			Str("conversation_id", state.ConversationID).
			Str("correlation_id", out.ID).
			Str("status", string(status)).
			Msg("Gate resolved")
		decided = append(decided, out)
	}
	return decided
}

// Accept decides g immediately, as when the session already holds elevated permission.
// It returns the decided gate and the tool result answering it.
func Accept(ctx context.Context, g *model.Gate, toolName string) (*model.Gate, *schema.Message) {
	out := g.Decided(model.GateAccepted)
	ui.FromContext(ctx).Push(ui.Event{
		ID:        out.ID,
		Name:      out.Component,
		Props:     ui.Props{"status": string(model.GateAccepted)},
		MessageID: out.MessageID,
		Merge:     ui.Merge,
		Status:    ui.StatusAccepted,
	})
	return out, model.NewToolMessage(out.ID, toolName, AcceptedSentinel)
}
