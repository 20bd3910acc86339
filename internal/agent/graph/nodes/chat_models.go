package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/chative-genui/server/internal/agent/graph/tools"
	"github.com/chative-genui/server/internal/agent/model"
	errx "github.com/chative-genui/server/internal/core/error"
	logx "github.com/chative-genui/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey  string
	BaseURL string
	Router  model.ChatModelConfig
	Agent   model.ChatModelConfig
	Summary model.ChatModelConfig
}

// ChatModel is a tool-calling model together with the name used for pricing and logs.
type ChatModel struct {
	Model einomodel.ToolCallingChatModel
	Name  string
}

// ChatModels holds the router, agent and summary chat models
type ChatModels struct {
	Router  ChatModel
	Agent   ChatModel
	Summary ChatModel
}

// NewChatModels creates the Gemini-backed chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.APIKey == "" {
		return nil, errx.MissingCredential("GEMINI_API_KEY")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	router, err := newGeminiModel(ctx, client, config.Router, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating router model: %w", err)
	}
	agent, err := newGeminiModel(ctx, client, config.Agent, &genai.ThinkingConfig{
		IncludeThoughts: false,
		ThinkingBudget:  genai.Ptr(int32(1024)),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating agent model: %w", err)
	}
	summary, err := newGeminiModel(ctx, client, config.Summary, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating summary model: %w", err)
	}

	return &ChatModels{
		Router:  ChatModel{Model: router, Name: config.Router.Model},
		Agent:   ChatModel{Model: agent, Name: config.Agent.Model},
		Summary: ChatModel{Model: summary, Name: config.Summary.Model},
	}, nil
}

func newGeminiModel(ctx context.Context, client *genai.Client, cfg model.ChatModelConfig, thinking *genai.ThinkingConfig) (*gemini.ChatModel, error) {
	maxTokens := cfg.MaxTokens
	temperature := cfg.Temperature
	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:         client,
		Model:          cfg.Model,
		Temperature:    &temperature,
		MaxTokens:      &maxTokens,
		ThinkingConfig: thinking,
	})
	if err != nil {
		logx.Error().Err(err).Str("model", cfg.Model).Msg("Error creating Gemini model")
		return nil, err
	}
	return cm, nil
}

// WithTools returns a copy of cm bound to the tools of reg.
func (cm ChatModel) WithTools(reg tools.Registry) (ChatModel, error) {
	bound, err := cm.Model.WithTools(reg.Infos())
	if err != nil {
		logx.Error().Err(err).Str("model", cm.Name).Msg("Failed to bind tools")
		return ChatModel{}, fmt.Errorf("failed to bind tools: %w", err)
	}
	return ChatModel{Model: bound, Name: cm.Name}, nil
}
