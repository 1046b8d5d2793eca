// Package ollama adapts a local Ollama server to the embedding and
// generation interfaces.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloo-solutions/ragchat/internal/domain"
	"github.com/ollama/ollama/api"
)

const (
	DefaultHost           = "http://localhost:11434"
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultChatModel      = "gemma:2b"
)

// ErrEmptyText is returned when text is empty
var ErrEmptyText = errors.New("text cannot be empty")

type Config struct {
	Host           string
	EmbeddingModel string
	ChatModel      string
	// HTTPClient defaults to http.DefaultClient, which has no timeout.
	HTTPClient *http.Client
}

// Client talks to the Ollama HTTP API
type Client struct {
	api            *api.Client
	embeddingModel string
	chatModel      string
}

// NewClient creates a client for the Ollama server at cfg.Host.
func NewClient(cfg Config) (*Client, error) {
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}

	return &Client{
		api:            api.NewClient(base, httpClient),
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
	}, nil
}

// GenerateEmbedding embeds text with the configured embedding model
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	resp, err := c.api.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  c.embeddingModel,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding with %s: %w", c.embeddingModel, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	embedding := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// Generate sends the messages to the chat endpoint and returns the full,
// non-streamed reply.
func (c *Client) Generate(ctx context.Context, messages []domain.Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("messages cannot be empty")
	}

	msgs := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, api.Message{Role: string(m.Role), Content: m.Content})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.chatModel,
		Messages: msgs,
		Stream:   &stream,
	}

	var reply strings.Builder
	err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to chat with %s: %w", c.chatModel, err)
	}

	return reply.String(), nil
}
