package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-genui/server/internal/agent/actions"
	"github.com/chative-genui/server/internal/agent/graph/gate"
	"github.com/chative-genui/server/internal/agent/graph/nodes"
	"github.com/chative-genui/server/internal/agent/graph/tools"
	"github.com/chative-genui/server/internal/agent/model"
	"github.com/chative-genui/server/internal/agent/ui"
	errx "github.com/chative-genui/server/internal/core/error"
	"github.com/chative-genui/server/pkg/tavily"
)

func turn(id, content string) model.TurnInput {
	return model.TurnInput{ConversationID: id, Messages: []*schema.Message{schema.UserMessage(content)}}
}

func routeTo(h *harness, route string) {
	h.router.script(tools.ToolRoute,
		call(0, "route-1", tools.ToolRoute, `{"ro`),
		argsFragment(0, `ute":"`+route+`"}`),
	)
}

func roles(msgs []*schema.Message) []schema.RoleType {
	out := make([]schema.RoleType, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Role)
	}
	return out
}

func TestSearchTurnReplacesLoadingCardWithResults(t *testing.T) {
	h := newHarness(t)
	routeTo(h, nodes.RouteSearch)
	h.agent.script(tools.ToolExtractSearchQuery,
		call(0, "q-1", tools.ToolExtractSearchQuery, `{"query":`),
		argsFragment(0, `"latest Mars rover news"}`),
	)
	h.summary.script("", text("Perseverance found "), text("new samples [1]."))
	h.searcher.results = []tavily.Result{
		{Title: "Rover update", URL: "https://example.com/a", Content: "samples"},
		{Title: "Mission log", URL: "https://example.com/b", Content: "sol 1000"},
	}

	out, err := h.runner.Invoke(context.Background(), turn("conv-1", "What's new with the Mars rover?"))
	require.NoError(t, err)

	assert.Equal(t, []string{"latest Mars rover news"}, h.searcher.queries)
	require.Len(t, out.UI, 2)
	assert.Equal(t, out.UI[0].ID, out.UI[1].ID)
	assert.Equal(t, nodes.ComponentSearch, out.UI[0].Name)
	assert.Equal(t, ui.StatusLoading, out.UI[0].Status)
	assert.Equal(t, nodes.ComponentSearchResults, out.UI[1].Name)
	assert.Equal(t, ui.StatusSuccess, out.UI[1].Status)
	assert.Equal(t, ui.Replace, out.UI[1].Merge)

	assert.Equal(t, []schema.RoleType{schema.User, schema.Assistant, schema.Tool, schema.User, schema.Assistant}, roles(out.Messages))
	assert.Equal(t, "q-1", out.Messages[2].ToolCallID)
	assert.Equal(t, `Here are the search results for "latest Mars rover news"`, out.Messages[3].Content)
	assert.Equal(t, out.UI[1].MessageID, model.MessageID(out.Messages[3]))
	assert.Equal(t, "Perseverance found new samples [1].", out.Messages[4].Content)

	assert.Empty(t, out.Next)
	assert.Nil(t, out.Search)

	saved, err := h.conversations.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Len(t, saved.Messages, 5)
	assert.Len(t, saved.UI, 2)
}

func TestSearchFailureEndsWithErrorCard(t *testing.T) {
	h := newHarness(t)
	routeTo(h, nodes.RouteSearch)
	h.agent.script(tools.ToolExtractSearchQuery, call(0, "q-1", tools.ToolExtractSearchQuery, `{"query":"mars rover"}`))
	h.searcher.err = errors.New("tavily: HTTP 500")

	out, err := h.runner.Invoke(context.Background(), turn("conv-1", "Search the Mars rover"))
	require.NoError(t, err)

	require.Len(t, out.UI, 2)
	assert.Equal(t, ui.StatusLoading, out.UI[0].Status)
	assert.Equal(t, ui.StatusError, out.UI[1].Status)
	assert.Equal(t, actions.SearchFailedReason, out.UI[1].Props["error"])
	assert.Empty(t, out.UI[1].Props["results"])

	last := out.Messages[len(out.Messages)-1]
	assert.Equal(t, schema.User, last.Role)
	assert.Equal(t, `Search failed for "mars rover"`, last.Content)
	assert.Zero(t, h.summary.callCount(""))
}

func TestUnknownRouteFallsBackToGeneral(t *testing.T) {
	h := newHarness(t)
	routeTo(h, "pizza")
	h.agent.script("", text("Hello! "), text("How can I help?"))

	out, err := h.runner.Invoke(context.Background(), turn("conv-1", "hi"))
	require.NoError(t, err)

	require.Len(t, out.Messages, 2)
	assert.Equal(t, "Hello! How can I help?", out.Messages[1].Content)
	assert.Empty(t, out.UI)
}

func TestRouterModelErrorFallsBackToGeneral(t *testing.T) {
	h := newHarness(t)
	h.agent.script("", text("I can still answer that."))

	out, err := h.runner.Invoke(context.Background(), turn("conv-1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, h.router.callCount(tools.ToolRoute))
	assert.Equal(t, "I can still answer that.", out.Messages[len(out.Messages)-1].Content)
}

func TestRejectedChangeIsRoutedWithoutModelCall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	routeTo(h, nodes.RouteOpenCode)
	h.agent.script(tools.ToolUpdateFile, call(0, "abc", tools.ToolUpdateFile, `{"plan_item":"Add todo list","change":"+ <TodoList />"}`))

	out, err := h.runner.Invoke(ctx, turn("conv-1", "Write me a TODO app"))
	require.NoError(t, err)
	require.Contains(t, out.Gates, "abc")
	assert.Equal(t, model.GateProposed, out.Gates["abc"].Status)
	require.Len(t, out.UI, 1)
	assert.Equal(t, "abc", out.UI[0].ID)
	assert.Equal(t, ui.StatusProposed, out.UI[0].Status)

	out, err = h.runner.Invoke(ctx, model.TurnInput{
		ConversationID: "conv-1",
		Messages:       []*schema.Message{schema.ToolMessage(gate.RejectedSentinel, "abc")},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, h.router.callCount(tools.ToolRoute))
	assert.Equal(t, 1, h.agent.callCount(tools.ToolUpdateFile))
	assert.Equal(t, model.GateRejected, out.Gates["abc"].Status)

	view, ok := ui.Current(out.UI, "abc")
	require.True(t, ok)
	assert.Equal(t, ui.StatusRejected, view.Status)
	assert.Equal(t, "+ <TodoList />", view.Props["change"])
	assert.Equal(t, `Discarded the proposed change for "Add todo list".`, out.Messages[len(out.Messages)-1].Content)
}

func TestFullWriteAccessAcceptsWithoutGate(t *testing.T) {
	h := newHarness(t)
	routeTo(h, nodes.RouteOpenCode)
	h.agent.script(tools.ToolUpdateFile, call(0, "c-1", tools.ToolUpdateFile, `{"plan_item":"Add todo list","change":"+ <TodoList />"}`))

	in := turn("conv-1", "Write me a TODO app")
	in.Config.FullWriteAccess = true
	out, err := h.runner.Invoke(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, out.Permissions.FullWriteAccess)
	assert.Equal(t, model.GateAccepted, out.Gates["c-1"].Status)
	require.Len(t, out.UI, 2)
	assert.Equal(t, ui.StatusProposed, out.UI[0].Status)
	assert.Equal(t, ui.StatusAccepted, out.UI[1].Status)

	var sentinel *schema.Message
	for _, m := range out.Messages {
		if m.Role == schema.Tool && m.ToolCallID == "c-1" {
			sentinel = m
		}
	}
	require.NotNil(t, sentinel)
	assert.Equal(t, gate.AcceptedSentinel, sentinel.Content)
	assert.Equal(t, `Applied the proposed change for "Add todo list".`, out.Messages[len(out.Messages)-1].Content)
}

func TestStockbrokerBuyWaitsForConfirmation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	routeTo(h, nodes.RouteStockbroker)
	h.agent.script(tools.ToolBuyStock,
		call(0, "price-1", tools.ToolStockPrice, `{"ticker":"aapl"}`),
		call(1, "buy-1", tools.ToolBuyStock, `{"ticker":"AAPL","quantity":2}`),
	)

	out, err := h.runner.Invoke(ctx, turn("conv-1", "Show me AAPL and buy 2 shares"))
	require.NoError(t, err)

	require.Len(t, out.UI, 2)
	assert.Equal(t, nodes.ComponentStockPrice, out.UI[0].Name)
	assert.Equal(t, ui.StatusSuccess, out.UI[0].Status)
	assert.Equal(t, "buy-1", out.UI[1].ID)
	assert.Equal(t, ui.StatusProposed, out.UI[1].Status)

	var answered []string
	for _, m := range out.Messages {
		if m.Role == schema.Tool {
			answered = append(answered, m.ToolCallID)
		}
	}
	assert.Equal(t, []string{"price-1"}, answered)
	assert.Empty(t, h.portfolio.holdings)

	out, err = h.runner.Invoke(ctx, model.TurnInput{
		ConversationID: "conv-1",
		Messages:       []*schema.Message{schema.ToolMessage(gate.AcceptedSentinel, "buy-1")},
	})
	require.NoError(t, err)

	assert.Equal(t, model.GateAccepted, out.Gates["buy-1"].Status)
	require.Contains(t, h.portfolio.holdings, "AAPL")
	assert.Equal(t, 2.0, h.portfolio.holdings["AAPL"].Quantity)
	assert.Equal(t, 172.5, h.portfolio.holdings["AAPL"].AvgPrice)
	assert.Equal(t, "Bought 2 shares of AAPL at $172.50. You now hold 2 shares.", out.Messages[len(out.Messages)-1].Content)

	view, ok := ui.Current(out.UI, "buy-1")
	require.True(t, ok)
	assert.Equal(t, ui.StatusAccepted, view.Status)
	assert.Equal(t, 1, h.router.callCount(tools.ToolRoute))
}

func TestInvokeRejectsOrphanToolResult(t *testing.T) {
	h := newHarness(t)

	_, err := h.runner.Invoke(context.Background(), model.TurnInput{
		ConversationID: "conv-1",
		Messages:       []*schema.Message{schema.ToolMessage(gate.AcceptedSentinel, "nope")},
	})
	require.Error(t, err)
	assert.Equal(t, 400, errx.StatusOf(err))
	assert.Zero(t, h.router.callCount(tools.ToolRoute))
}

func TestInvokeRequiresConversationID(t *testing.T) {
	h := newHarness(t)

	_, err := h.runner.Invoke(context.Background(), turn("  ", "hi"))
	require.Error(t, err)
	assert.Equal(t, 400, errx.StatusOf(err))
}

func TestBuildAgentRejectsMissingDeps(t *testing.T) {
	_, err := BuildAgent(context.Background(), &GraphConfig{Deps: &nodes.Deps{}})
	assert.Error(t, err)

	_, err = BuildAgent(context.Background(), nil)
	assert.Error(t, err)
}

func TestGeneralReplyFailureAnswersWithApology(t *testing.T) {
	h := newHarness(t)
	routeTo(h, nodes.RouteGeneral)

	out, err := h.runner.Invoke(context.Background(), turn("conv-1", "hi"))
	require.NoError(t, err)

	assert.Equal(t, 1, h.agent.callCount(""))
	last := out.Messages[len(out.Messages)-1]
	assert.Equal(t, schema.Assistant, last.Role)
	assert.Equal(t, "Sorry, I couldn't generate a reply. Please try again.", last.Content)
}

func proposeBuy(t *testing.T, h *harness) {
	t.Helper()
	routeTo(h, nodes.RouteStockbroker)
	h.agent.script(tools.ToolBuyStock, call(0, "buy-1", tools.ToolBuyStock, `{"ticker":"AAPL","quantity":2}`))
	out, err := h.runner.Invoke(context.Background(), turn("conv-1", "Buy 2 shares of AAPL"))
	require.NoError(t, err)
	require.Equal(t, model.GateProposed, out.Gates["buy-1"].Status)
}

func TestRepeatedDecisionBuysOnce(t *testing.T) {
	h := newHarness(t)
	proposeBuy(t, h)

	out, err := h.runner.Invoke(context.Background(), model.TurnInput{
		ConversationID: "conv-1",
		Messages: []*schema.Message{
			schema.ToolMessage(gate.AcceptedSentinel, "buy-1"),
			schema.ToolMessage(gate.AcceptedSentinel, "buy-1"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2.0, h.portfolio.holdings["AAPL"].Quantity)
	assert.Equal(t, model.GateAccepted, out.Gates["buy-1"].Status)

	bought := 0
	for _, m := range out.Messages {
		if m.Role == schema.Assistant && strings.HasPrefix(m.Content, "Bought") {
			bought++
		}
	}
	assert.Equal(t, 1, bought)

	out, err = h.runner.Invoke(context.Background(), model.TurnInput{
		ConversationID: "conv-1",
		Messages:       []*schema.Message{schema.ToolMessage(gate.AcceptedSentinel, "buy-1")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2.0, h.portfolio.holdings["AAPL"].Quantity)
}

func TestConflictingDecisionsKeepTheFirst(t *testing.T) {
	h := newHarness(t)
	proposeBuy(t, h)

	out, err := h.runner.Invoke(context.Background(), model.TurnInput{
		ConversationID: "conv-1",
		Messages: []*schema.Message{
			schema.ToolMessage(gate.AcceptedSentinel, "buy-1"),
			schema.ToolMessage(gate.RejectedSentinel, "buy-1"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.GateAccepted, out.Gates["buy-1"].Status)
	assert.Equal(t, 2.0, h.portfolio.holdings["AAPL"].Quantity)
	for _, m := range out.Messages {
		assert.NotContains(t, m.Content, "won't buy")
	}

	view, ok := ui.Current(out.UI, "buy-1")
	require.True(t, ok)
	assert.Equal(t, ui.StatusAccepted, view.Status)
}
