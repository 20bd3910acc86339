package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/chative-genui/server/internal/agent/graph"
	"github.com/chative-genui/server/internal/agent/graph/gate"
	"github.com/chative-genui/server/internal/agent/model"
	"github.com/chative-genui/server/internal/agent/repo"
	"github.com/chative-genui/server/internal/agent/ui"
	"github.com/chative-genui/server/internal/core"
	logx "github.com/chative-genui/server/pkg/logger"
	pkgredis "github.com/chative-genui/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the agent demo,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Router       model.RouterModelConfig
	Agent        model.AgentModelConfig
	Summary      model.SummaryModelConfig
	Conversation model.ConversationConfig
	Search       model.SearchConfig
	Market       model.MarketConfig

	// AutoAccept answers every proposed gate with the accepted sentinel.
	AutoAccept bool `envconfig:"DEMO_AUTO_ACCEPT" default:"true"`
}

var (
	title   = color.New(color.FgCyan, color.Bold)
	human   = color.New(color.FgGreen)
	ai      = color.New(color.FgWhite)
	tool    = color.New(color.FgYellow)
	uiColor = color.New(color.FgMagenta)
	failure = color.New(color.FgRed, color.Bold)
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load .env file: %v\n", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		failure.Fprintf(os.Stderr, "Failed to process environment config: %v\n", err)
		os.Exit(1)
	}
	logx.Init(logx.LoggerOpts{Environment: envCfg.Environment, Level: envCfg.LogLevel, Service: "chative-genui"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rdb, err := envCfg.Redis.New(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()
	logx.Info().Msg("Connected to Redis")

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("value", envCfg.Conversation.TTL).Msg("Invalid CONVERSATION_TTL")
	}

	runner, err := graph.BuildRunner(ctx, graph.Config{
		APIKey:           envCfg.APIKey,
		BaseURL:          envCfg.BaseURL,
		RouterModel:      envCfg.Router,
		AgentModel:       envCfg.Agent,
		SummaryModel:     envCfg.Summary,
		Conversation:     envCfg.Conversation,
		Search:           envCfg.Search,
		Market:           envCfg.Market,
		ConversationRepo: repo.NewRedisConversationRepository(rdb, ttl),
		PortfolioRepo:    repo.NewRedisPortfolioRepository(rdb, ttl),
		Sinks:            repo.NewRedisUIPublisher(rdb).For,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build graph")
	}

	demos := []struct {
		description string
		query       string
	}{
		{description: "Web search", query: "What's the latest news about the Mars rover?"},
		{description: "Stock price", query: "How has NVDA been trading this month?"},
		{description: "Buy with confirmation", query: "Buy 2 shares of AAPL"},
		{description: "Portfolio", query: "What's in my portfolio?"},
		{description: "Code change with review", query: "Write me a React TODO app"},
		{description: "General", query: "What can you do?"},
	}

	conversationID := fmt.Sprintf("demo-%d", time.Now().Unix())
	seen := 0
	title.Printf("Conversation %s (UI events on %s)\n", conversationID, repo.Channel(conversationID))

	for i, demo := range demos {
		title.Printf("\nTurn %d: %s\n", i+1, demo.description)
		human.Printf("> %s\n", demo.query)

		in := model.TurnInput{
			ConversationID: conversationID,
			Messages:       []*schema.Message{schema.UserMessage(demo.query)},
		}
		state, err := invoke(ctx, runner, in, &seen)
		if err != nil {
			failure.Printf("Turn %d failed: %v\n", i+1, err)
			os.Exit(1)
		}

		for attempt := 0; envCfg.AutoAccept && attempt < 3; attempt++ {
			decisions := acceptProposed(state)
			if len(decisions) == 0 {
				break
			}
			tool.Printf("Accepting %d proposed change(s)\n", len(decisions))
			state, err = invoke(ctx, runner, model.TurnInput{ConversationID: conversationID, Messages: decisions}, &seen)
			if err != nil {
				failure.Printf("Decision for turn %d failed: %v\n", i+1, err)
				os.Exit(1)
			}
		}
		fmt.Printf("Total cost so far: $%.6f\n", state.TotalCostUSD)
	}

	title.Println("\nDemo complete")
}

// invoke runs one turn and prints the messages added since seen.
func invoke(ctx context.Context, runner graph.Runner, in model.TurnInput, seen *int) (*model.ConversationState, error) {
	state, err := runner.Invoke(ctx, in)
	if err != nil {
		return nil, err
	}
	for _, m := range state.Messages[min(*seen, len(state.Messages)):] {
		printMessage(m)
	}
	*seen = len(state.Messages)
	printUI(state.UI)
	return state, nil
}

// acceptProposed returns an accepted-sentinel tool result for every open gate.
func acceptProposed(state *model.ConversationState) []*schema.Message {
	ids := make([]string, 0, len(state.Gates))
	for id, g := range state.Gates {
		if g.Status == model.GateProposed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]*schema.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, schema.ToolMessage(gate.Sentinel(model.GateAccepted), id))
	}
	return out
}

func printMessage(m *schema.Message) {
	switch m.Role {
	case schema.User:
		human.Printf("[user] %s\n", m.Content)
	case schema.Tool:
		tool.Printf("[tool %s] %s\n", m.ToolCallID, m.Content)
	default:
		for _, tc := range m.ToolCalls {
			tool.Printf("[call %s] %s(%s)\n", tc.ID, tc.Function.Name, tc.Function.Arguments)
		}
		if m.Content != "" {
			ai.Printf("[assistant] %s\n", m.Content)
		}
	}
}

func printUI(events []ui.Event) {
	views := ui.Reduce(events)
	ids := make([]string, 0, len(views))
	for id := range views {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		v := views[id]
		uiColor.Printf("[ui %s] %s %s\n", v.Status, v.Name, id)
	}
}
