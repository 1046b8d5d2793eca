package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/ragchat/internal/api/handlers"
	"github.com/cloo-solutions/ragchat/internal/api/middleware"
	"github.com/cloo-solutions/ragchat/internal/domain"
	"github.com/cloo-solutions/ragchat/internal/knowledge"
	"github.com/cloo-solutions/ragchat/internal/retrieval"
	"github.com/cloo-solutions/ragchat/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, messages []domain.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func setupRouter(t *testing.T, validator middleware.TokenValidator) (http.Handler, *MockEmbedder, *MockGenerator) {
	t.Helper()

	embedder := new(MockEmbedder)
	generator := new(MockGenerator)

	embedder.On("GenerateEmbedding", mock.Anything, "Cells are the basic unit of life.").Return([]float32{1, 0}, nil)
	embedder.On("GenerateEmbedding", mock.Anything, "DNA carries genetic information.").Return([]float32{0, 1}, nil)

	store, err := knowledge.Build(context.Background(), "Cells are the basic unit of life.\nDNA carries genetic information.\n", embedder)
	require.NoError(t, err)

	svc := service.NewChatService(store, retrieval.NewRanker(embedder), generator, service.ChatOptions{TopK: 1})

	router := NewRouter(RouterConfig{
		TokenValidator: validator,
		ChatHandler:    handlers.NewChatHandler(svc),
	})
	return router, embedder, generator
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _ := setupRouter(t, middleware.NewStaticToken("s3cret"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, float64(2), data["chunks"])
	assert.Equal(t, float64(2), data["dimensions"])
}

func TestRouter_V1RequiresAuthWhenConfigured(t *testing.T) {
	router, _, _ := setupRouter(t, middleware.NewStaticToken("s3cret"))

	for _, path := range []string{"/v1/ask", "/v1/search"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{}`))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_Ask_WithValidAuth(t *testing.T) {
	router, embedder, generator := setupRouter(t, middleware.NewStaticToken("s3cret"))

	embedder.On("GenerateEmbedding", mock.Anything, "What is a cell?").Return([]float32{0.9, 0.1}, nil)
	generator.On("Generate", mock.Anything, mock.Anything).Return("The basic unit of life.", nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewBufferString(`{"question":"What is a cell?"}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data handlers.AskResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "The basic unit of life.", resp.Data.Answer)
	require.Len(t, resp.Data.Context, 1)
	assert.Equal(t, "Cells are the basic unit of life.", resp.Data.Context[0].Text)
	generator.AssertExpectations(t)
}

func TestRouter_OpenWithoutValidator(t *testing.T) {
	router, embedder, _ := setupRouter(t, nil)

	embedder.On("GenerateEmbedding", mock.Anything, "genetic").Return([]float32{0, 1}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewBufferString(`{"query":"genetic","k":2}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data handlers.SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Results, 2)
	assert.Equal(t, "DNA carries genetic information.", resp.Data.Results[0].Text)
}

func TestRouter_RejectsOversizedBody(t *testing.T) {
	router, _, _ := setupRouter(t, nil)

	body := bytes.Repeat([]byte("a"), int(maxBodyBytes)+1)
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
