package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/chative-genui/server/internal/agent/actions"
	"github.com/chative-genui/server/internal/agent/graph/conversations"
	"github.com/chative-genui/server/internal/agent/graph/nodes"
	"github.com/chative-genui/server/internal/agent/model"
	"github.com/chative-genui/server/pkg/financialdatasets"
	"github.com/chative-genui/server/pkg/tavily"
)

// scriptedModel streams canned chunk sequences. Scripts are keyed by the first bound tool
// name ("" when no tools are bound) and consumed in order.
type scriptedModel struct {
	mu      *sync.Mutex
	scripts map[string][][]*schema.Message
	calls   map[string]int
	key     string
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{mu: &sync.Mutex{}, scripts: map[string][][]*schema.Message{}, calls: map[string]int{}}
}

func (m *scriptedModel) script(key string, chunks ...*schema.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[key] = append(m.scripts[key], chunks)
}

func (m *scriptedModel) callCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key]
}

func (m *scriptedModel) next() ([]*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[m.key]++
	queue := m.scripts[m.key]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no scripted reply for %q", m.key)
	}
	m.scripts[m.key] = queue[1:]
	return queue[0], nil
}

func (m *scriptedModel) Generate(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	chunks, err := m.next()
	if err != nil {
		return nil, err
	}
	return schema.ConcatMessages(chunks)
}

func (m *scriptedModel) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	chunks, err := m.next()
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray(chunks), nil
}

func (m *scriptedModel) WithTools(infos []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	bound := *m
	bound.key = ""
	if len(names) > 0 {
		bound.key = names[0]
	}
	return &bound, nil
}

func text(s string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: s}
}

func call(index int, id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Index:    &index,
			ID:       id,
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func argsFragment(index int, args string) *schema.Message {
	return call(index, "", "", args)
}

type memoryConversations struct {
	mu     sync.Mutex
	states map[string]*model.ConversationState
}

func (m *memoryConversations) Load(_ context.Context, id string) (*model.ConversationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[id]; ok {
		return s.Clone(), nil
	}
	return model.NewConversationState(id), nil
}

func (m *memoryConversations) Save(_ context.Context, s *model.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.ConversationID] = s.Clone()
	return nil
}

func (m *memoryConversations) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

type memoryPortfolio struct {
	mu       sync.Mutex
	holdings map[string]model.Holding
}

func (m *memoryPortfolio) Holdings(context.Context, string) ([]model.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Holding{}
	for _, h := range m.holdings {
		out = append(out, h)
	}
	return out, nil
}

func (m *memoryPortfolio) Buy(_ context.Context, _ string, ticker string, qty, price float64) (model.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.holdings[ticker]
	cost := h.AvgPrice*h.Quantity + qty*price
	h.Ticker = ticker
	h.Quantity += qty
	h.AvgPrice = cost / h.Quantity
	m.holdings[ticker] = h
	return h, nil
}

type fakeSearcher struct {
	results []tavily.Result
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, in tavily.Request) ([]tavily.Result, error) {
	f.queries = append(f.queries, in.Query)
	return f.results, f.err
}

type fakeMarketData struct{}

func (fakeMarketData) Snapshot(_ context.Context, ticker string) (*financialdatasets.Snapshot, error) {
	return &financialdatasets.Snapshot{Ticker: ticker, Price: 172.5, Time: "2024-03-14T20:00:00Z"}, nil
}

func (fakeMarketData) Prices(_ context.Context, q financialdatasets.PricesQuery) (*financialdatasets.PricesPage, error) {
	if q.Multiplier == 5 {
		return nil, &financialdatasets.StatusError{StatusCode: 404, Status: "404 Not Found"}
	}
	return &financialdatasets.PricesPage{Prices: []financialdatasets.Price{
		{Close: 170, Time: "2024-03-13T16:00:00Z"},
		{Close: 172.5, Time: "2024-03-14T16:00:00Z"},
	}}, nil
}

func (fakeMarketData) NextPage(context.Context, string) (*financialdatasets.PricesPage, error) {
	return nil, errors.New("no more pages")
}

type harness struct {
	router, agent, summary *scriptedModel
	searcher               *fakeSearcher
	portfolio              *memoryPortfolio
	conversations          *memoryConversations
	agentGraph             *Agent
	runner                 Runner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		router:        newScriptedModel(),
		agent:         newScriptedModel(),
		summary:       newScriptedModel(),
		searcher:      &fakeSearcher{},
		portfolio:     &memoryPortfolio{holdings: map[string]model.Holding{}},
		conversations: &memoryConversations{states: map[string]*model.ConversationState{}},
	}
	market := actions.NewMarket(fakeMarketData{}, actions.MarketOptions{})
	mm := conversations.NewMessagesManager(h.conversations, model.ConversationConfig{MaxContextMessages: 40})

	agent, err := BuildAgent(context.Background(), &GraphConfig{Deps: &nodes.Deps{
		Models: &nodes.ChatModels{
			Router:  nodes.ChatModel{Model: h.router, Name: "gemini-2.5-flash-lite"},
			Agent:   nodes.ChatModel{Model: h.agent, Name: "gemini-2.5-flash"},
			Summary: nodes.ChatModel{Model: h.summary, Name: "gemini-2.5-flash"},
		},
		Messages:  mm,
		Search:    actions.NewSearchExecutor(h.searcher, 5),
		Market:    market,
		Portfolio: actions.NewPortfolio(h.portfolio, market),
	}})
	require.NoError(t, err)
	h.agentGraph = agent
	h.runner = NewRunner(agent, mm)
	return h
}
