package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type Config struct {
	KnowledgeSource string `envconfig:"KNOWLEDGE_SOURCE" default:"biology.txt"`
	TopK            int    `envconfig:"TOP_K" default:"2"`
	ExitKeyword     string `envconfig:"EXIT_KEYWORD" default:"exit"`
	SystemPrompt    string `envconfig:"SYSTEM_PROMPT"`

	Provider       string `envconfig:"PROVIDER" default:"ollama"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL"`
	ChatModel      string `envconfig:"CHAT_MODEL"`

	OllamaHost string `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`

	Port   string `envconfig:"PORT" default:"8080"`
	APIKey string `envconfig:"API_KEY"`
	Debug  bool   `envconfig:"DEBUG" default:"false"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// Parse reads .env and the RAGCHAT_* environment without validating, so
// callers can apply overrides first.
func Parse() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RAGCHAT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("invalid config: TOP_K must be at least 1, got %d", c.TopK)
	}
	if strings.TrimSpace(c.ExitKeyword) == "" {
		return fmt.Errorf("invalid config: EXIT_KEYWORD cannot be empty")
	}

	switch c.Provider {
	case ProviderOllama:
	case ProviderOpenAI:
		if !c.HasOpenAI() && c.OpenAIBaseURL == "" {
			return fmt.Errorf("invalid config: OPENAI_API_KEY is required for the openai provider")
		}
	default:
		return fmt.Errorf("invalid config: unknown PROVIDER %q (expected %s or %s)", c.Provider, ProviderOllama, ProviderOpenAI)
	}

	if c.EmbeddingDimensions < 0 {
		return fmt.Errorf("invalid config: EMBEDDING_DIMENSIONS cannot be negative")
	}

	return nil
}

// ValidateS3 checks only the object storage settings.
func (c *Config) ValidateS3() error {
	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		return fmt.Errorf("invalid config: S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	}
	if c.S3Region == "" {
		return fmt.Errorf("invalid config: S3_REGION cannot be empty")
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" || (c.S3AccessKey != "" && c.S3SecretKey != "")
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

func (c *Config) HasAuth() bool {
	return c.APIKey != ""
}
