package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/xeipuuv/gojsonschema"

	"github.com/chative-genui/server/internal/agent/graph/tools"
	"github.com/chative-genui/server/internal/agent/model"
	logx "github.com/chative-genui/server/pkg/logger"
)

// Extractor turns a finalized message into validated tool calls for one registry.
type Extractor struct {
	registry tools.Registry
	schemas  map[string]*gojsonschema.Schema
}

func NewExtractor(registry tools.Registry) (*Extractor, error) {
	e := &Extractor{registry: registry, schemas: make(map[string]*gojsonschema.Schema, len(registry))}
	for name, def := range registry {
		s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(objectSchema(def.Params)))
		if err != nil {
			return nil, fmt.Errorf("compile schema for tool %s: %w", name, err)
		}
		e.schemas[name] = s
	}
	return e, nil
}

// Extract returns the calls of msg that name a registered tool and carry valid arguments,
// in message order. Everything else is logged and skipped.
func (e *Extractor) Extract(msg *schema.Message) []model.ToolCall {
	if msg == nil {
		return nil
	}
	var out []model.ToolCall
	for _, tc := range msg.ToolCalls {
		call, ok := e.Validate(tc.ID, tc.Function.Name, tc.Function.Arguments)
		if ok {
			out = append(out, call)
		}
	}
	return out
}

// Validate normalizes args, which may be JSON text or an already-structured value, and
// checks it against the named tool's shape.
func (e *Extractor) Validate(id, name string, args any) (model.ToolCall, bool) {
	s, ok := e.schemas[name]
	if !ok {
		logx.Debug().Str("tool_name", name).Str("tool_call_id", id).Msg("Ignoring unregistered tool call")
		return model.ToolCall{}, false
	}
	canonical, decoded, err := NormalizeArgs(args)
	if err != nil {
		logx.Warn().Err(err).Str("tool_name", name).Str("tool_call_id", id).Msg("Tool call arguments could not be normalized")
		return model.ToolCall{}, false
	}
	res, err := s.Validate(gojsonschema.NewGoLoader(decoded))
	if err != nil {
		logx.Warn().Err(err).Str("tool_name", name).Str("tool_call_id", id).Msg("Tool call validation failed")
		return model.ToolCall{}, false
	}
	if !res.Valid() {
		logx.Warn().
			Str("tool_name", name).
			Str("tool_call_id", id).
			Strs("errors", resultErrors(res)).
			Msg("Tool call arguments do not match schema")
		return model.ToolCall{}, false
	}
	return model.ToolCall{ID: id, Name: name, Args: canonical}, true
}

// NormalizeArgs converts tool arguments into canonical JSON (sorted keys, no whitespace)
// and the decoded object. JSON text that itself encodes a JSON string is unwrapped once.
func NormalizeArgs(args any) (json.RawMessage, map[string]any, error) {
	var raw []byte
	switch v := args.(type) {
	case nil:
		raw = []byte("{}")
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, nil, fmt.Errorf("encode args: %w", err)
		}
		raw = b
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, nil, fmt.Errorf("decode args: %w", err)
	}
	if inner, ok := decoded.(string); ok {
		if err := json.Unmarshal([]byte(strings.TrimSpace(inner)), &decoded); err != nil {
			return nil, nil, fmt.Errorf("decode nested args: %w", err)
		}
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("args must be a JSON object, got %T", decoded)
	}
	canonical, err := json.Marshal(obj)
	if err != nil {
		return nil, nil, fmt.Errorf("encode args: %w", err)
	}
	return canonical, obj, nil
}

func resultErrors(res *gojsonschema.Result) []string {
	errs := res.Errors()
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.String())
	}
	return out
}

// objectSchema renders eino parameter infos as a JSON schema document.
func objectSchema(params map[string]*schema.ParameterInfo) map[string]any {
	props := make(map[string]any, len(params))
	var required []string
	for name, p := range params {
		props[name] = paramSchema(p)
		if p.Required {
			required = append(required, name)
		}
	}
	out := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		sort.Strings(required)
		out["required"] = required
	}
	return out
}

func paramSchema(p *schema.ParameterInfo) map[string]any {
	out := map[string]any{}
	if p == nil {
		return out
	}
	if p.Type != "" {
		out["type"] = string(p.Type)
	}
	if p.Desc != "" {
		out["description"] = p.Desc
	}
	if len(p.Enum) > 0 {
		enum := make([]any, len(p.Enum))
		for i, v := range p.Enum {
			enum[i] = v
		}
		out["enum"] = enum
	}
	switch p.Type {
	case schema.Array:
		if p.ElemInfo != nil {
			out["items"] = paramSchema(p.ElemInfo)
		}
	case schema.Object:
		if len(p.SubParams) > 0 {
			sub := objectSchema(p.SubParams)
			out["properties"] = sub["properties"]
			if req, ok := sub["required"]; ok {
				out["required"] = req
			}
		}
	}
	return out
}
