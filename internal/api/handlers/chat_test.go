package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/ragchat/internal/api/middleware"
	"github.com/cloo-solutions/ragchat/internal/domain"
	"github.com/cloo-solutions/ragchat/internal/retrieval"
	"github.com/cloo-solutions/ragchat/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Ask(ctx context.Context, question string) (*service.Answer, error) {
	args := m.Called(ctx, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Answer), args.Error(1)
}

func (m *MockChatService) Search(ctx context.Context, query string, k int) ([]retrieval.Result, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Result), args.Error(1)
}

func (m *MockChatService) Stats() service.Stats {
	args := m.Called()
	return args.Get(0).(service.Stats)
}

func decodeData(t *testing.T, body []byte, v interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

func TestChatHandler_Ask_Success(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Ask", mock.Anything, "What is a cell?").Return(&service.Answer{
		Question: "What is a cell?",
		Context:  []retrieval.Result{{Index: 0, Text: "Cells are the basic unit of life.", Score: 0.99}},
		Response: "The basic unit of life.",
	}, nil)

	body, _ := json.Marshal(AskRequest{Question: "What is a cell?"})
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp AskResponse
	decodeData(t, w.Body.Bytes(), &resp)
	assert.Equal(t, "The basic unit of life.", resp.Answer)
	require.Len(t, resp.Context, 1)
	assert.Equal(t, "Cells are the basic unit of life.", resp.Context[0].Text)
	mockSvc.AssertExpectations(t)
}

func TestChatHandler_Ask_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", "{", "invalid request body"},
		{"missing question", `{"question":"  "}`, "question cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockChatService)
			req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			NewChatHandler(mockSvc).Ask(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
			mockSvc.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything)
		})
	}
}

func TestChatHandler_Ask_UpstreamFailure(t *testing.T) {
	mockSvc := new(MockChatService)
	mockSvc.On("Ask", mock.Anything, "What is a cell?").Return(nil, domain.GenerationUnavailable(errors.New("connection refused")))

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewBufferString(`{"question":"What is a cell?"}`))
	w := httptest.NewRecorder()

	NewChatHandler(mockSvc).Ask(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrCodeGenerationUnavailable)
}

func TestChatHandler_Search(t *testing.T) {
	mockSvc := new(MockChatService)
	mockSvc.On("Search", mock.Anything, "dna", 2).Return([]retrieval.Result{
		{Index: 1, Text: "DNA carries genetic information.", Score: 0.87},
		{Index: 2, Text: "blank vector", Score: math.Inf(-1)},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewBufferString(`{"query":"dna","k":2}`))
	w := httptest.NewRecorder()

	NewChatHandler(mockSvc).Search(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp SearchResponse
	decodeData(t, w.Body.Bytes(), &resp)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 1, resp.Results[0].Index)
	assert.InDelta(t, 0.87, resp.Results[0].Score, 1e-9)
	assert.Equal(t, 0.0, resp.Results[1].Score)
}

func TestChatHandler_Search_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing query", `{"k":2}`, "query cannot be empty"},
		{"negative k", `{"query":"dna","k":-1}`, "k must be between 0 and 50"},
		{"k too large", `{"query":"dna","k":51}`, "k must be between 0 and 50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockChatService)
			req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			NewChatHandler(mockSvc).Search(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestChatHandler_Search_ZeroKUsesDefault(t *testing.T) {
	mockSvc := new(MockChatService)
	mockSvc.On("Search", mock.Anything, "dna", 0).Return([]retrieval.Result{
		{Index: 1, Text: "DNA carries genetic information.", Score: 0.87},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewBufferString(`{"query":"dna"}`))
	w := httptest.NewRecorder()

	NewChatHandler(mockSvc).Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

// tracedRequest runs handler behind the Trace middleware and returns the
// trace the handler filled in.
func tracedRequest(t *testing.T, handler http.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, *middleware.RequestTrace) {
	t.Helper()
	var trace *middleware.RequestTrace
	w := httptest.NewRecorder()
	middleware.Trace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace = middleware.TraceFrom(r.Context())
		handler(w, r)
	})).ServeHTTP(w, req)
	require.NotNil(t, trace)
	return w, trace
}

func TestChatHandler_RecordsOutcomeOnTrace(t *testing.T) {
	t.Run("retrieved chunks", func(t *testing.T) {
		mockSvc := new(MockChatService)
		mockSvc.On("Ask", mock.Anything, "What is a cell?").Return(&service.Answer{
			Context:  []retrieval.Result{{Index: 0, Text: "a"}, {Index: 1, Text: "b"}},
			Response: "ok",
		}, nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewBufferString(`{"question":"What is a cell?"}`))
		w, trace := tracedRequest(t, NewChatHandler(mockSvc).Ask, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, trace.RequestID, w.Header().Get("X-Request-ID"))
		assert.Equal(t, 2, trace.Outcome().Chunks)
		assert.Empty(t, trace.Outcome().Code)
	})

	t.Run("upstream failure", func(t *testing.T) {
		mockSvc := new(MockChatService)
		mockSvc.On("Search", mock.Anything, "dna", 1).Return(nil, domain.EmbeddingUnavailable(errors.New("connection refused")))

		req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewBufferString(`{"query":"dna","k":1}`))
		w, trace := tracedRequest(t, NewChatHandler(mockSvc).Search, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, domain.ErrCodeEmbeddingUnavailable, trace.Outcome().Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewBufferString("{"))
		w, trace := tracedRequest(t, NewChatHandler(new(MockChatService)).Ask, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, domain.ErrCodeValidation, trace.Outcome().Code)
	})
}

func TestChatHandler_Health(t *testing.T) {
	mockSvc := new(MockChatService)
	mockSvc.On("Stats").Return(service.Stats{Chunks: 12, Dimensions: 768})

	w := httptest.NewRecorder()
	NewChatHandler(mockSvc).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	decodeData(t, w.Body.Bytes(), &resp)
	assert.Equal(t, HealthResponse{Status: "ok", Chunks: 12, Dimensions: 768}, resp)
}
