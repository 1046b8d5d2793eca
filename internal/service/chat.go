package service

import (
	"context"
	"log"
	"strings"

	"github.com/cloo-solutions/ragchat/internal/domain"
	"github.com/cloo-solutions/ragchat/internal/knowledge"
	"github.com/cloo-solutions/ragchat/internal/retrieval"
	"github.com/cloo-solutions/ragchat/internal/telemetry"
)

const DefaultTopK = 2

// Ranker defines the interface for selecting relevant chunks
type Ranker interface {
	Rank(ctx context.Context, store *knowledge.Store, query string, k int) ([]retrieval.Result, error)
}

// Generator defines the interface for producing an answer from messages
type Generator interface {
	Generate(ctx context.Context, messages []domain.Message) (string, error)
}

type ChatOptions struct {
	TopK         int
	SystemPrompt string
	// Provider and Model only label telemetry spans.
	Provider string
	Model    string
}

// Answer is the outcome of one question
type Answer struct {
	Question string
	Context  []retrieval.Result
	Messages []domain.Message
	Response string
}

// Stats describes the loaded knowledge base
type Stats struct {
	Chunks     int
	Dimensions int
}

// ChatService answers questions from a fixed knowledge store
type ChatService struct {
	store     *knowledge.Store
	ranker    Ranker
	generator Generator
	opts      ChatOptions
}

// NewChatService creates a new ChatService instance. A TopK below 1 falls
// back to DefaultTopK.
func NewChatService(store *knowledge.Store, ranker Ranker, generator Generator, opts ChatOptions) *ChatService {
	if opts.TopK < 1 {
		opts.TopK = DefaultTopK
	}
	return &ChatService{
		store:     store,
		ranker:    ranker,
		generator: generator,
		opts:      opts,
	}
}

// Ask retrieves the most relevant chunks for question and asks the generator
// to answer from them. Retrieval errors are returned unchanged.
func (s *ChatService) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	ctx, span := telemetry.StartSpan(ctx, "chat.ask", s.spanAttributes("ask"))
	defer span.End()

	results, err := s.ranker.Rank(ctx, s.store, question, s.opts.TopK)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	telemetry.AddBreadcrumb(ctx, "chat", "context retrieved")

	messages := BuildMessages(s.opts.SystemPrompt, retrieval.JoinContext(retrieval.Texts(results)), question)

	response, err := s.generator.Generate(ctx, messages)
	if err != nil {
		err = domain.GenerationUnavailable(err)
		span.SetError(err)
		log.Printf("chat: generation failed: %v", err)
		return nil, err
	}

	return &Answer{
		Question: question,
		Context:  results,
		Messages: messages,
		Response: strings.TrimSpace(response),
	}, nil
}

// Search ranks chunks against query without generating an answer. A k below
// 1 uses the configured TopK.
func (s *ChatService) Search(ctx context.Context, query string, k int) ([]retrieval.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if k < 1 {
		k = s.opts.TopK
	}

	ctx, span := telemetry.StartSpan(ctx, "chat.search", s.spanAttributes("search"))
	defer span.End()

	results, err := s.ranker.Rank(ctx, s.store, query, k)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return results, nil
}

func (s *ChatService) Stats() Stats {
	return Stats{Chunks: s.store.Len(), Dimensions: s.store.Dimensions()}
}

func (s *ChatService) TopK() int {
	return s.opts.TopK
}

func (s *ChatService) spanAttributes(op string) telemetry.SpanAttributes {
	return telemetry.SpanAttributes{
		Operation: op,
		Provider:  s.opts.Provider,
		Model:     s.opts.Model,
		TopK:      s.opts.TopK,
	}
}
