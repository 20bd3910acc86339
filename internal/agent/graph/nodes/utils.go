package nodes

import (
	"context"
	"encoding/json"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chative-genui/server/internal/agent/graph/parsers"
	"github.com/chative-genui/server/internal/agent/model"
	logx "github.com/chative-genui/server/pkg/logger"
)

// NodeFunc is the shape of every node: it reads the state and returns the next state.
type NodeFunc = func(ctx context.Context, state *model.ConversationState) (*model.ConversationState, error)

// stream runs cm over msgs and folds the streamed chunks into one assistant message.
// A nil message with a nil error means the model produced nothing.
func stream(ctx context.Context, cm ChatModel, node string, state *model.ConversationState, msgs []*schema.Message) (*schema.Message, float64, error) {
	log := logx.Node(state.ConversationID, node)

	ctx = einocb.ReuseHandlers(ctx, &einocb.RunInfo{
		Name:      node,
		Type:      "Gemini",
		Component: components.ComponentOfChatModel,
	})
	sr, err := cm.Model.Stream(ctx, msgs)
	if err != nil {
		return nil, 0, err
	}
	msg, diags, err := parsers.Accumulate(sr)
	if err != nil {
		return nil, 0, err
	}
	for _, d := range diags {
		log.Warn().
			Str("tool_call_id", d.ID).
			Str("tool_name", d.Name).
			Str("reason", d.Reason).
			Msg("Dropped tool call")
	}
	if msg == nil {
		log.Debug().Msg("Model stream was empty")
		return nil, 0, nil
	}

	msg.Role = schema.Assistant
	// Some providers omit tool call ids.
	for i := range msg.ToolCalls {
		if strings.TrimSpace(msg.ToolCalls[i].ID) == "" {
			msg.ToolCalls[i].ID = "call_" + uuid.NewString()
		}
	}
	model.EnsureMessageID(msg)
	return msg, usageCost(log, cm.Name, msg), nil
}

// usageCost prices the message's token usage and records it in the message Extra.
func usageCost(log zerolog.Logger, modelName string, out *schema.Message) float64 {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return 0
	}
	cost := model.PriceUsage(modelName, out.ResponseMeta.Usage)
	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra["usage_cost"] = cost
	log.Debug().
		Str("model", modelName).
		Int("prompt_tokens", cost.PromptTokens).
		Int("completion_tokens", cost.CompletionTokens).
		Int("total_tokens", cost.TotalTokens).
		Float64("total_cost_usd", cost.TotalCost).
		Msg("LLM usage")
	return cost.TotalCost
}

// keepCalls returns a copy of msg whose tool calls are limited to the validated calls.
// Calls that failed validation would otherwise be left without a tool result.
func keepCalls(msg *schema.Message, calls []model.ToolCall) *schema.Message {
	keep := make(map[string]bool, len(calls))
	for _, c := range calls {
		keep[c.ID] = true
	}
	out := *msg
	out.ToolCalls = nil
	for _, tc := range msg.ToolCalls {
		if keep[tc.ID] {
			out.ToolCalls = append(out.ToolCalls, tc)
		}
	}
	return &out
}

// toolResult answers call with payload encoded as JSON.
func toolResult(call model.ToolCall, payload any) *schema.Message {
	b, err := json.Marshal(payload)
	if err != nil {
		b = []byte(`{"success":false}`)
	}
	return model.NewToolMessage(call.ID, call.Name, string(b))
}

// hasContent reports whether msg is worth appending to the transcript.
func hasContent(msg *schema.Message) bool {
	return msg != nil && (strings.TrimSpace(msg.Content) != "" || len(msg.ToolCalls) > 0)
}
