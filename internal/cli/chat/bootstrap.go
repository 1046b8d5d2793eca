// Package chat wires configuration, model providers and the knowledge base
// into the ragchat commands.
package chat

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/ragchat/internal/config"
	"github.com/cloo-solutions/ragchat/internal/knowledge"
	"github.com/cloo-solutions/ragchat/internal/ollama"
	"github.com/cloo-solutions/ragchat/internal/openai"
	"github.com/cloo-solutions/ragchat/internal/retrieval"
	"github.com/cloo-solutions/ragchat/internal/service"
	"github.com/cloo-solutions/ragchat/internal/source"
	"github.com/cloo-solutions/ragchat/internal/storage"
	"github.com/cloo-solutions/ragchat/internal/telemetry"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

// Provider embeds text and generates answers with the same backend.
type Provider interface {
	knowledge.Embedder
	service.Generator
}

// Overrides are command-line values that take precedence over the environment.
type Overrides struct {
	Source   string
	TopK     int
	Provider string
}

func overridesFromFlags(cmd *cobra.Command) Overrides {
	src, _ := cmd.Flags().GetString("source")
	topK, _ := cmd.Flags().GetInt("top-k")
	provider, _ := cmd.Flags().GetString("provider")
	return Overrides{Source: src, TopK: topK, Provider: provider}
}

// LoadConfig reads the environment, applies o on top and validates the
// result, so a flag can correct an invalid environment value.
func LoadConfig(o Overrides) (*config.Config, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, err
	}

	if o.Source != "" {
		cfg.KnowledgeSource = o.Source
	}
	if o.TopK != 0 {
		cfg.TopK = o.TopK
	}
	if o.Provider != "" {
		cfg.Provider = o.Provider
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewProvider builds the embedding and chat backend selected by cfg.Provider.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
			ChatModel:           cfg.ChatModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		}), nil
	case config.ProviderOllama:
		client, err := ollama.NewClient(ollama.Config{
			Host:           cfg.OllamaHost,
			EmbeddingModel: cfg.EmbeddingModel,
			ChatModel:      cfg.ChatModel,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func chatModelName(cfg *config.Config) string {
	if cfg.ChatModel != "" {
		return cfg.ChatModel
	}
	if cfg.Provider == config.ProviderOpenAI {
		return openai.DefaultChatModel
	}
	return ollama.DefaultChatModel
}

// NewS3Client returns nil when no S3 settings are present and location is
// not an s3:// URL.
func NewS3Client(ctx context.Context, cfg *config.Config, location string) (*storage.S3Client, error) {
	if !cfg.HasS3() && !source.IsS3(location) {
		return nil, nil
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		UsePathStyle:    cfg.S3Endpoint != "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return client, nil
}

// Runtime is a loaded knowledge base ready to answer questions.
type Runtime struct {
	Config  *config.Config
	Service *service.ChatService
	flush   func()
}

// Close flushes pending telemetry.
func (r *Runtime) Close() {
	if r.flush != nil {
		r.flush()
	}
}

// Bootstrap loads configuration, the knowledge source and the provider, then
// builds the store. Any failure here is fatal for the command.
func Bootstrap(ctx context.Context, o Overrides) (*Runtime, error) {
	cfg, err := LoadConfig(o)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flush := initTelemetry(cfg)

	objects, err := NewS3Client(ctx, cfg, cfg.KnowledgeSource)
	if err != nil {
		flush()
		return nil, err
	}

	provider, err := NewProvider(cfg)
	if err != nil {
		flush()
		return nil, err
	}

	var reader source.ObjectReader
	if objects != nil {
		reader = objects
	}

	rt, err := NewRuntime(ctx, cfg, provider, reader)
	if err != nil {
		telemetry.CaptureError(ctx, err)
		flush()
		return nil, err
	}
	rt.flush = flush
	return rt, nil
}

// NewRuntime loads cfg.KnowledgeSource through objects (nil for local files
// only) and embeds it with provider.
func NewRuntime(ctx context.Context, cfg *config.Config, provider Provider, objects source.ObjectReader) (*Runtime, error) {
	text, err := source.NewLoader(objects).Load(ctx, cfg.KnowledgeSource)
	if err != nil {
		return nil, err
	}
	log.Printf("chat: loaded knowledge source %s (%d bytes)", cfg.KnowledgeSource, len(text))

	store, err := knowledge.Build(ctx, text, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to build knowledge base: %w", err)
	}

	svc := service.NewChatService(store, retrieval.NewRanker(provider), provider, service.ChatOptions{
		TopK:         cfg.TopK,
		SystemPrompt: cfg.SystemPrompt,
		Provider:     cfg.Provider,
		Model:        chatModelName(cfg),
	})
	stats := svc.Stats()
	log.Printf("chat: knowledge base ready (%d chunks, %d dims, top_k=%d)", stats.Chunks, stats.Dimensions, svc.TopK())

	return &Runtime{Config: cfg, Service: svc}, nil
}

func initTelemetry(cfg *config.Config) func() {
	if !cfg.HasSentry() {
		return func() {}
	}

	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	flush, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return flush
}
