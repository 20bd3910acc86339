package model

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/chative-genui/server/internal/agent/ui"
	logx "github.com/chative-genui/server/pkg/logger"
)

// ConversationState is the record shared by every node of one graph invocation.
// Concurrency model:
//   - The state value flows through the graph as node input/output; nodes never mutate
//     the state they receive. They return an Update which is applied to a copy.
//   - UI events are pushed through the invocation's ui.Channel and copied back into UI
//     when the invocation finishes.
type ConversationState struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []*schema.Message `json:"messages"`
	UI             []ui.Event        `json:"ui"`
	Gates          map[string]*Gate  `json:"gates,omitempty"`
	Permissions    Permissions       `json:"permissions"`

	// Per-invocation scratch, cleared by the router.
	Next   string         `json:"next,omitempty"`
	Search *SearchScratch `json:"search,omitempty"`
	Stock  *StockScratch  `json:"stock,omitempty"`
	Code   *CodeScratch   `json:"code,omitempty"`

	// Accumulated total LLM cost (USD) across model invocations for this conversation
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// SearchScratch carries the search agent's query and results between its nodes.
type SearchScratch struct {
	Query   string      `json:"query,omitempty"`
	UIID    string      `json:"ui_id,omitempty"`
	Results []SearchHit `json:"results,omitempty"`
	Failed  bool        `json:"failed,omitempty"`
}

// StockScratch carries the stockbroker's extracted tool calls from prepare to act.
type StockScratch struct {
	MessageID string     `json:"message_id,omitempty"`
	Calls     []ToolCall `json:"calls,omitempty"`
}

// CodeScratch carries the open-code agent's proposal from propose to review.
type CodeScratch struct {
	GateID string `json:"gate_id,omitempty"`
}

// Permissions are elevated grants that persist for the session.
type Permissions struct {
	FullWriteAccess bool `json:"full_write_access"`
}

// InvokeConfig is out-of-band configuration supplied with one invocation.
type InvokeConfig struct {
	// FullWriteAccess is set by the caller when the user chose "accept, don't ask again".
	FullWriteAccess bool `json:"full_write_access"`
}

// TurnInput is the public input of one conversation turn.
type TurnInput struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []*schema.Message `json:"messages"`
	Config         InvokeConfig      `json:"config"`
}

// ToolCall is a registered tool invocation whose arguments passed schema validation.
// Args holds the canonical JSON encoding.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// DecodeArgs unmarshals the canonical arguments into v.
func (tc ToolCall) DecodeArgs(v any) error {
	if err := json.Unmarshal(tc.Args, v); err != nil {
		return fmt.Errorf("decode %s args: %w", tc.Name, err)
	}
	return nil
}

// Update is a node's partial result. Zero fields leave the state untouched.
type Update struct {
	Messages    []*schema.Message
	Next        string
	Search      *SearchScratch
	Stock       *StockScratch
	Code        *CodeScratch
	Gates       []*Gate
	Permissions *Permissions
	CostUSD     float64
}

// NewConversationState returns an empty state for conversationID.
func NewConversationState(conversationID string) *ConversationState {
	return &ConversationState{
		ConversationID: conversationID,
		Messages:       []*schema.Message{},
		UI:             []ui.Event{},
		Gates:          map[string]*Gate{},
	}
}

// Clone returns a copy whose slices and maps can be extended without touching s.
func (s *ConversationState) Clone() *ConversationState {
	out := *s
	out.Messages = append([]*schema.Message(nil), s.Messages...)
	out.UI = append([]ui.Event(nil), s.UI...)
	out.Gates = make(map[string]*Gate, len(s.Gates))
	for k, g := range s.Gates {
		out.Gates[k] = g
	}
	return &out
}

// Apply returns a new state with u merged in. Tool results that answer no known tool
// call are dropped.
func (s *ConversationState) Apply(u Update) *ConversationState {
	out := s.Clone()
	for _, m := range u.Messages {
		if m == nil {
			continue
		}
		if err := out.checkToolResult(m); err != nil {
			logx.Warn().Err(err).Str("conversation_id", s.ConversationID).Msg("Dropping orphan tool result")
			continue
		}
		EnsureMessageID(m)
		out.Messages = append(out.Messages, m)
	}
	if u.Next != "" {
		out.Next = u.Next
	}
	if u.Search != nil {
		out.Search = u.Search
	}
	if u.Stock != nil {
		out.Stock = u.Stock
	}
	if u.Code != nil {
		out.Code = u.Code
	}
	for _, g := range u.Gates {
		if g != nil {
			out.Gates[g.ID] = g
		}
	}
	if u.Permissions != nil {
		out.Permissions = *u.Permissions
	}
	out.TotalCostUSD += u.CostUSD
	return out
}

// AppendInbound appends caller-supplied messages, rejecting orphan tool results.
func (s *ConversationState) AppendInbound(msgs []*schema.Message) (*ConversationState, error) {
	out := s.Clone()
	for i, m := range msgs {
		if m == nil {
			continue
		}
		if err := out.checkToolResult(m); err != nil {
			return nil, fmt.Errorf("inbound message %d: %w", i, err)
		}
		EnsureMessageID(m)
		out.Messages = append(out.Messages, m)
	}
	return out, nil
}

// ResetScratch clears the per-invocation fields.
func (s *ConversationState) ResetScratch() *ConversationState {
	out := s.Clone()
	out.Next = ""
	out.Search = nil
	out.Stock = nil
	out.Code = nil
	return out
}

func (s *ConversationState) checkToolResult(m *schema.Message) error {
	if m.Role != schema.Tool {
		return nil
	}
	if m.ToolCallID == "" {
		return fmt.Errorf("tool result without tool_call_id")
	}
	if s.findToolCall(m.ToolCallID) == nil {
		return fmt.Errorf("tool result %q answers no tool call in the conversation", m.ToolCallID)
	}
	return nil
}

func (s *ConversationState) findToolCall(id string) *schema.ToolCall {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m == nil || m.Role != schema.Assistant {
			continue
		}
		for j := range m.ToolCalls {
			if m.ToolCalls[j].ID == id {
				return &m.ToolCalls[j]
			}
		}
	}
	return nil
}

// LastHumanMessage returns the most recent user message, or nil.
func (s *ConversationState) LastHumanMessage() *schema.Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if m := s.Messages[i]; m != nil && m.Role == schema.User {
			return m
		}
	}
	return nil
}
