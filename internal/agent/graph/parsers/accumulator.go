package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Diagnostic records a tool call dropped while finalizing a message.
type Diagnostic struct {
	ID     string
	Name   string
	Reason string
}

type callBuffer struct {
	index *int
	id    string
	typ   string
	name  string
	args  strings.Builder
}

// Accumulator folds streamed message chunks into one message. Text concatenates in
// arrival order; tool-call argument fragments concatenate per call index.
type Accumulator struct {
	seen  bool
	role  schema.RoleType
	name  string
	text  strings.Builder
	calls []*callBuffer
	byKey map[string]*callBuffer
	meta  *schema.ResponseMeta
	extra map[string]any
}

func NewAccumulator() *Accumulator {
	return &Accumulator{byKey: map[string]*callBuffer{}}
}

// Add folds one chunk. Nil chunks are ignored.
func (a *Accumulator) Add(chunk *schema.Message) {
	if chunk == nil {
		return
	}
	a.seen = true
	if a.role == "" && chunk.Role != "" {
		a.role = chunk.Role
	}
	if a.name == "" {
		a.name = chunk.Name
	}
	a.text.WriteString(chunk.Content)
	for i := range chunk.ToolCalls {
		a.addCall(&chunk.ToolCalls[i])
	}
	if chunk.ResponseMeta != nil {
		if a.meta == nil {
			a.meta = &schema.ResponseMeta{}
		}
		if chunk.ResponseMeta.FinishReason != "" {
			a.meta.FinishReason = chunk.ResponseMeta.FinishReason
		}
		if chunk.ResponseMeta.Usage != nil {
			a.meta.Usage = chunk.ResponseMeta.Usage
		}
	}
	for k, v := range chunk.Extra {
		if a.extra == nil {
			a.extra = map[string]any{}
		}
		a.extra[k] = v
	}
}

func (a *Accumulator) addCall(tc *schema.ToolCall) {
	var buf *callBuffer
	switch {
	case tc.Index != nil:
		buf = a.slot(fmt.Sprintf("i:%d", *tc.Index))
	case tc.ID != "":
		buf = a.slot("id:" + tc.ID)
	case len(a.calls) > 0:
		// Anonymous fragment continues the most recent call.
		buf = a.calls[len(a.calls)-1]
	default:
		buf = a.slot(fmt.Sprintf("n:%d", len(a.calls)))
	}
	if buf.index == nil && tc.Index != nil {
		idx := *tc.Index
		buf.index = &idx
	}
	if buf.id == "" {
		buf.id = tc.ID
	}
	if buf.typ == "" {
		buf.typ = tc.Type
	}
	if buf.name == "" {
		buf.name = tc.Function.Name
	}
	buf.args.WriteString(tc.Function.Arguments)
}

func (a *Accumulator) slot(key string) *callBuffer {
	if buf, ok := a.byKey[key]; ok {
		return buf
	}
	buf := &callBuffer{}
	a.byKey[key] = buf
	a.calls = append(a.calls, buf)
	return buf
}

// Message returns the finalized message, or nil when no chunk was added. Tool calls whose
// argument buffer is not valid JSON are dropped and reported.
func (a *Accumulator) Message() (*schema.Message, []Diagnostic) {
	if !a.seen {
		return nil, nil
	}
	role := a.role
	if role == "" {
		role = schema.Assistant
	}
	msg := &schema.Message{
		Role:         role,
		Name:         a.name,
		Content:      a.text.String(),
		ResponseMeta: a.meta,
		Extra:        a.extra,
	}
	var diags []Diagnostic
	for _, buf := range a.calls {
		args := strings.TrimSpace(buf.args.String())
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			diags = append(diags, Diagnostic{ID: buf.id, Name: buf.name, Reason: "incomplete or malformed arguments"})
			continue
		}
		msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
			Index:    buf.index,
			ID:       buf.id,
			Type:     buf.typ,
			Function: schema.FunctionCall{Name: buf.name, Arguments: args},
		})
	}
	return msg, diags
}

// Accumulate drains stream and finalizes its message. An empty stream yields a nil message
// and no error.
func Accumulate(stream *schema.StreamReader[*schema.Message]) (*schema.Message, []Diagnostic, error) {
	defer stream.Close()
	acc := NewAccumulator()
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		acc.Add(chunk)
	}
	msg, diags := acc.Message()
	return msg, diags, nil
}
