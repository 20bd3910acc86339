package parsers

import (
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idx(i int) *int { return &i }

func textChunk(s string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: s}
}

func callChunk(index *int, id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Index:    index,
			ID:       id,
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func TestAccumulateConcatenatesText(t *testing.T) {
	parts := []string{"Hel", "lo, ", "", "wor", "ld"}
	chunks := make([]*schema.Message, 0, len(parts))
	for _, p := range parts {
		chunks = append(chunks, textChunk(p))
	}

	msg, diags, err := Accumulate(schema.StreamReaderFromArray(chunks))
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Empty(t, diags)
	assert.Equal(t, strings.Join(parts, ""), msg.Content)
	assert.Equal(t, schema.Assistant, msg.Role)
}

func TestAccumulateEmptyStreamYieldsNoMessage(t *testing.T) {
	msg, diags, err := Accumulate(schema.StreamReaderFromArray([]*schema.Message{}))
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Nil(t, diags)
}

func TestAccumulateToolCallFragmentsByIndex(t *testing.T) {
	chunks := []*schema.Message{
		textChunk("Let me check. "),
		callChunk(idx(0), "call_1", "stock-price", `{"tic`),
		callChunk(idx(1), "call_2", "portfolio", `{"get_portfolio":`),
		callChunk(idx(0), "", "", `ker":"AAPL"}`),
		callChunk(idx(1), "", "", ` true}`),
	}
	msg, diags, err := Accumulate(schema.StreamReaderFromArray(chunks))
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, msg.ToolCalls, 2)

	assert.Equal(t, "call_1", msg.ToolCalls[0].ID)
	assert.Equal(t, "stock-price", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"ticker":"AAPL"}`, msg.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "call_2", msg.ToolCalls[1].ID)
	assert.JSONEq(t, `{"get_portfolio":true}`, msg.ToolCalls[1].Function.Arguments)
	assert.Equal(t, "Let me check. ", msg.Content)
}

func TestAccumulateDropsMalformedCallOnly(t *testing.T) {
	chunks := []*schema.Message{
		textChunk("partial"),
		callChunk(idx(0), "good", "extract_search_query", `{"query":"mars rover"}`),
		callChunk(idx(1), "bad", "extract_search_query", `{"query":"mars`),
	}
	msg, diags, err := Accumulate(schema.StreamReaderFromArray(chunks))
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "good", msg.ToolCalls[0].ID)
	require.Len(t, diags, 1)
	assert.Equal(t, "bad", diags[0].ID)
	assert.Equal(t, "partial", msg.Content)
}

func TestAccumulateWholeCallsWithoutIndex(t *testing.T) {
	chunks := []*schema.Message{
		callChunk(nil, "a", "stock-price", `{"ticker":"MSFT"}`),
		callChunk(nil, "b", "buy-stock", `{"ticker":"MSFT","quantity":2}`),
	}
	msg, _, err := Accumulate(schema.StreamReaderFromArray(chunks))
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, "b", msg.ToolCalls[1].ID)
}

func TestAccumulateEmptyArgsBecomeEmptyObject(t *testing.T) {
	msg, diags, err := Accumulate(schema.StreamReaderFromArray([]*schema.Message{callChunk(idx(0), "x", "portfolio", "")}))
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "{}", msg.ToolCalls[0].Function.Arguments)
}

func TestAccumulateKeepsLastUsage(t *testing.T) {
	first := textChunk("a")
	last := textChunk("b")
	last.ResponseMeta = &schema.ResponseMeta{FinishReason: "stop", Usage: &schema.TokenUsage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12}}

	msg, _, err := Accumulate(schema.StreamReaderFromArray([]*schema.Message{first, last}))
	require.NoError(t, err)
	require.NotNil(t, msg.ResponseMeta)
	assert.Equal(t, "stop", msg.ResponseMeta.FinishReason)
	assert.Equal(t, 12, msg.ResponseMeta.Usage.TotalTokens)
}

func TestAccumulateStreamError(t *testing.T) {
	sr, sw := schema.Pipe[*schema.Message](2)
	go func() {
		defer sw.Close()
		sw.Send(textChunk("a"), nil)
		sw.Send(nil, errors.New("provider reset"))
	}()
	msg, _, err := Accumulate(sr)
	assert.Error(t, err)
	assert.Nil(t, msg)
}
