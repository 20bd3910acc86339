package model

// ================ Config ================
type ConversationConfig struct {
	TTL                string `envconfig:"CONVERSATION_TTL" default:"24h"`
	MaxContextMessages int    `envconfig:"CONVERSATION_MAX_CONTEXT_MESSAGES" default:"40"`
}

// ChatModelConfig describes one Gemini model used by the graph.
type ChatModelConfig struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

type RouterModelConfig struct {
	Model       string  `envconfig:"ROUTER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"ROUTER_MAX_TOKENS" default:"256"`
	Temperature float32 `envconfig:"ROUTER_TEMPERATURE" default:"0"`
}

type AgentModelConfig struct {
	Model       string  `envconfig:"AGENT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"AGENT_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"AGENT_TEMPERATURE" default:"0"`
}

type SummaryModelConfig struct {
	Model       string  `envconfig:"SUMMARY_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"SUMMARY_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"SUMMARY_TEMPERATURE" default:"0.4"`
}

func (c RouterModelConfig) ChatModel() ChatModelConfig {
	return ChatModelConfig{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}

func (c AgentModelConfig) ChatModel() ChatModelConfig {
	return ChatModelConfig{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}

func (c SummaryModelConfig) ChatModel() ChatModelConfig {
	return ChatModelConfig{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}

type SearchConfig struct {
	APIKey     string `envconfig:"TAVILY_API_KEY" required:"true"`
	BaseURL    string `envconfig:"TAVILY_BASE_URL"`
	MaxResults int    `envconfig:"TAVILY_MAX_RESULTS" default:"5"`
}

type MarketConfig struct {
	APIKey        string `envconfig:"FINANCIAL_DATASETS_API_KEY" required:"true"`
	BaseURL       string `envconfig:"FINANCIAL_DATASETS_BASE_URL"`
	MaxExtraPages int    `envconfig:"MARKET_MAX_EXTRA_PAGES" default:"10"`
	SnapshotTTL   string `envconfig:"MARKET_SNAPSHOT_TTL" default:"30s"`
}
