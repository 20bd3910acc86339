package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chative-genui/server/internal/agent/actions"
	"github.com/chative-genui/server/internal/agent/graph/conversations"
	"github.com/chative-genui/server/internal/agent/graph/nodes"
	"github.com/chative-genui/server/internal/agent/model"
	errx "github.com/chative-genui/server/internal/core/error"
	"github.com/chative-genui/server/pkg/financialdatasets"
	logx "github.com/chative-genui/server/pkg/logger"
	"github.com/chative-genui/server/pkg/tavily"
)

// Runner executes one conversation turn against persisted state.
type Runner interface {
	Invoke(ctx context.Context, in model.TurnInput) (*model.ConversationState, error)
}

// Config holds everything needed to compose the full graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the chat models,
// the external clients and the MessagesManager.
type Config struct {
	APIKey           string
	BaseURL          string
	RouterModel      model.RouterModelConfig
	AgentModel       model.AgentModelConfig
	SummaryModel     model.SummaryModelConfig
	Conversation     model.ConversationConfig
	Search           model.SearchConfig
	Market           model.MarketConfig
	ConversationRepo model.ConversationRepository
	PortfolioRepo    model.PortfolioRepository
	Sinks            SinkFactory
}

type graphRunner struct {
	agent    *Agent
	messages *conversations.MessagesManager
}

// BuildRunner composes chat models, executors and the MessagesManager, builds the graph,
// and returns a Runner.
func BuildRunner(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ConversationRepo == nil || cfg.PortfolioRepo == nil {
		return nil, fmt.Errorf("conversation or portfolio repo is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Router:  cfg.RouterModel.ChatModel(),
		Agent:   cfg.AgentModel.ChatModel(),
		Summary: cfg.SummaryModel.ChatModel(),
	})
	if err != nil {
		return nil, err
	}

	searchClient, err := tavily.New(cfg.Search.APIKey, tavily.WithBaseURL(cfg.Search.BaseURL))
	if err != nil {
		return nil, errx.MissingCredential("TAVILY_API_KEY")
	}
	marketClient, err := financialdatasets.New(cfg.Market.APIKey, financialdatasets.WithBaseURL(cfg.Market.BaseURL))
	if err != nil {
		return nil, errx.MissingCredential("FINANCIAL_DATASETS_API_KEY")
	}
	snapshotTTL, err := time.ParseDuration(cfg.Market.SnapshotTTL)
	if err != nil {
		return nil, errx.Config(fmt.Errorf("MARKET_SNAPSHOT_TTL: %w", err))
	}

	market := actions.NewMarket(marketClient, actions.MarketOptions{
		MaxExtraPages: cfg.Market.MaxExtraPages,
		SnapshotTTL:   snapshotTTL,
	})
	mm := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)

	agent, err := BuildAgent(ctx, &GraphConfig{
		Deps: &nodes.Deps{
			Models:    cms,
			Messages:  mm,
			Search:    actions.NewSearchExecutor(searchClient, cfg.Search.MaxResults),
			Market:    market,
			Portfolio: actions.NewPortfolio(cfg.PortfolioRepo, market),
		},
		Sinks: cfg.Sinks,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Agent graph built successfully")
	return NewRunner(agent, mm), nil
}

// NewRunner pairs a compiled agent with conversation persistence.
func NewRunner(agent *Agent, messages *conversations.MessagesManager) Runner {
	return &graphRunner{agent: agent, messages: messages}
}

// Invoke loads the conversation, appends the inbound messages, runs the graph and saves
// the result.
func (r *graphRunner) Invoke(ctx context.Context, in model.TurnInput) (*model.ConversationState, error) {
	id := strings.TrimSpace(in.ConversationID)
	if id == "" {
		return nil, errx.Validation(fmt.Errorf("conversation id is required"))
	}

	state, err := r.messages.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	state, err = state.AppendInbound(in.Messages)
	if err != nil {
		return nil, errx.Validation(err)
	}

	out, err := r.agent.Run(ctx, state, in.Config)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", id).Msg("Graph invocation failed")
		return nil, err
	}
	if err := r.messages.Save(ctx, out); err != nil {
		return nil, err
	}
	logx.Debug().
		Str("conversation_id", id).
		Int("messages", len(out.Messages)).
		Int("ui_events", len(out.UI)).
		Float64("total_cost_usd", out.TotalCostUSD).
		Msg("Turn complete")
	return out, nil
}
