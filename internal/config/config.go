package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "NEWSDESK"

// Config is the top-level newsdesk configuration.
type Config struct {
	Provider  ProviderConfig  `json:"provider" yaml:"provider" envconfig:"provider"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding" envconfig:"embedding"`
	RAG       RAGConfig       `json:"rag" yaml:"rag" envconfig:"rag"`
	Agent     AgentConfig     `json:"agent" yaml:"agent" envconfig:"agent"`
	WebSearch WebSearchConfig `json:"web_search" yaml:"web_search" envconfig:"web_search"`
	News      NewsConfig      `json:"news" yaml:"news" envconfig:"news"`
	API       APIConfig       `json:"api" yaml:"api" envconfig:"api"`
	Telegram  TelegramConfig  `json:"telegram" yaml:"telegram" envconfig:"telegram"`

	// Webhooks maps a feed source name to its push credentials. File-only.
	Webhooks map[string]WebhookSource `json:"webhooks,omitempty" yaml:"webhooks,omitempty" ignored:"true"`
}

// WebhookSource authenticates one pushing feed. Secret selects HMAC
// signatures; BearerToken is checked otherwise.
type WebhookSource struct {
	Secret      string `json:"secret,omitempty" yaml:"secret,omitempty"`
	BearerToken string `json:"bearer_token,omitempty" yaml:"bearer_token,omitempty"`
}

// ProviderConfig holds chat model settings. Groq and Ollama use type
// "openai" with their own base_url.
type ProviderConfig struct {
	Type      string  `json:"type,omitempty" yaml:"type,omitempty" envconfig:"type" default:"openai"`
	APIKey    string  `json:"api_key" yaml:"api_key" envconfig:"api_key"`
	BaseURL   string  `json:"base_url,omitempty" yaml:"base_url,omitempty" envconfig:"base_url"`
	Model     string  `json:"model" yaml:"model" envconfig:"model"`
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty" envconfig:"rate_limit"` // requests per second, 0 disables
	Burst     int     `json:"burst,omitempty" yaml:"burst,omitempty" envconfig:"burst" default:"1"`
}

// EmbeddingConfig selects the embedder used by the vector store.
type EmbeddingConfig struct {
	Type    string `json:"type,omitempty" yaml:"type,omitempty" envconfig:"type" default:"openai"` // "openai" or "hash"
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty" envconfig:"api_key"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" envconfig:"base_url"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty" envconfig:"model" default:"text-embedding-3-small"`
	Dims    int    `json:"dims,omitempty" yaml:"dims,omitempty" envconfig:"dims" default:"256"` // hash embedder only
}

// RAGConfig holds retrieval and research loop settings.
type RAGConfig struct {
	Path                   string `json:"path" yaml:"path" envconfig:"path" default:"newsdesk.db"`
	DocumentsDir           string `json:"documents_dir,omitempty" yaml:"documents_dir,omitempty" envconfig:"documents_dir"`
	TopN                   int    `json:"top_n,omitempty" yaml:"top_n,omitempty" envconfig:"top_n" default:"5"`
	MaxConversationHistory int    `json:"max_conversation_history,omitempty" yaml:"max_conversation_history,omitempty" envconfig:"max_conversation_history" default:"10"`
	MaxIterations          int    `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" envconfig:"max_iterations" default:"5"`
	ReindexSchedule        string `json:"reindex_schedule,omitempty" yaml:"reindex_schedule,omitempty" envconfig:"reindex_schedule"` // cron expression
}

// AgentConfig holds tool agent token limits.
type AgentConfig struct {
	MaxTotalTokens    int `json:"max_total_tokens,omitempty" yaml:"max_total_tokens,omitempty" envconfig:"max_total_tokens" default:"12000"`
	MaxResponseTokens int `json:"max_response_tokens,omitempty" yaml:"max_response_tokens,omitempty" envconfig:"max_response_tokens" default:"8192"`
	ToolTimeout       int `json:"tool_timeout,omitempty" yaml:"tool_timeout,omitempty" envconfig:"tool_timeout" default:"30"` // seconds
}

// WebSearchConfig holds the live web search endpoint settings.
type WebSearchConfig struct {
	URL       string  `json:"url,omitempty" yaml:"url,omitempty" envconfig:"url"`
	APIKey    string  `json:"api_key" yaml:"api_key" envconfig:"api_key"`
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty" envconfig:"rate_limit"`
}

// NewsConfig holds the news_search tool settings.
type NewsConfig struct {
	URL    string `json:"url,omitempty" yaml:"url,omitempty" envconfig:"url"`
	APIKey string `json:"api_key" yaml:"api_key" envconfig:"api_key"`
}

// APIConfig holds REST API server settings.
type APIConfig struct {
	Host string `json:"host" yaml:"host" envconfig:"host" default:"0.0.0.0"`
	Port int    `json:"port" yaml:"port" envconfig:"port" default:"8080"`
	Key  string `json:"api_key" yaml:"api_key" envconfig:"api_key"`
}

// TelegramConfig holds Telegram bot settings. An empty token disables the bot.
type TelegramConfig struct {
	Token     string  `json:"token,omitempty" yaml:"token,omitempty" envconfig:"token"`
	AllowFrom []int64 `json:"allow_from,omitempty" yaml:"allow_from,omitempty" envconfig:"allow_from"`
}

// Load reads configuration from a JSON or YAML file, fills defaults and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse decodes data by extension. Anything not .yaml/.yml is JSON.
func parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv builds a config from NEWSDESK_* environment variables. A .env
// file in the working directory is loaded first when present; variables
// already set in the environment win.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills zero values that envconfig defaults cover for env
// loading but files leave empty.
func (c *Config) applyDefaults() {
	if c.Provider.Type == "" {
		c.Provider.Type = "openai"
	}
	if c.Provider.Model == "" {
		switch c.Provider.Type {
		case "anthropic":
			c.Provider.Model = "claude-sonnet-4-20250514"
		default:
			c.Provider.Model = "gpt-4o"
		}
	}
	if c.Provider.Burst <= 0 {
		c.Provider.Burst = 1
	}
	if c.Embedding.Type == "" {
		c.Embedding.Type = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dims <= 0 {
		c.Embedding.Dims = 256
	}
	if c.Embedding.Type == "openai" && c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
		c.Embedding.APIKey = c.Provider.APIKey
	}
	if c.RAG.Path == "" {
		c.RAG.Path = "newsdesk.db"
	}
	if c.RAG.TopN <= 0 {
		c.RAG.TopN = 5
	}
	if c.RAG.MaxConversationHistory <= 0 {
		c.RAG.MaxConversationHistory = 10
	}
	if c.RAG.MaxIterations <= 0 {
		c.RAG.MaxIterations = 5
	}
	if c.Agent.MaxTotalTokens <= 0 {
		c.Agent.MaxTotalTokens = 12000
	}
	if c.Agent.MaxResponseTokens <= 0 {
		c.Agent.MaxResponseTokens = 8192
	}
	if c.Agent.ToolTimeout <= 0 {
		c.Agent.ToolTimeout = 30
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// Validate checks for required fields and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	switch c.Provider.Type {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Sprintf("provider.type %q is not supported (openai, anthropic)", c.Provider.Type))
	}
	// Local OpenAI-compatible servers such as Ollama take no key.
	if c.Provider.APIKey == "" && c.Provider.BaseURL == "" {
		errs = append(errs, "provider.api_key is required")
	}
	if c.Provider.Model == "" {
		errs = append(errs, "provider.model is required")
	}
	if c.Provider.RateLimit < 0 {
		errs = append(errs, "provider.rate_limit must not be negative")
	}

	switch c.Embedding.Type {
	case "openai":
		if c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
			errs = append(errs, "embedding.api_key is required for the openai embedder")
		}
	case "hash":
	default:
		errs = append(errs, fmt.Sprintf("embedding.type %q is not supported (openai, hash)", c.Embedding.Type))
	}

	if c.RAG.Path == "" {
		errs = append(errs, "rag.path is required")
	}
	if c.RAG.TopN < 0 {
		errs = append(errs, "rag.top_n must not be negative")
	}
	if c.RAG.ReindexSchedule != "" {
		if c.RAG.DocumentsDir == "" {
			errs = append(errs, "rag.documents_dir is required when rag.reindex_schedule is set")
		}
		if _, err := cron.ParseStandard(c.RAG.ReindexSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("rag.reindex_schedule: %v", err))
		}
	}

	if c.Agent.MaxResponseTokens >= c.Agent.MaxTotalTokens {
		errs = append(errs, "agent.max_response_tokens must be smaller than agent.max_total_tokens")
	}

	if c.WebSearch.RateLimit < 0 {
		errs = append(errs, "web_search.rate_limit must not be negative")
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port %d is out of range", c.API.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
