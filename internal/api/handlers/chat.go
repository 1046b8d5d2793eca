package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloo-solutions/ragchat/internal/api"
	"github.com/cloo-solutions/ragchat/internal/api/middleware"
	"github.com/cloo-solutions/ragchat/internal/domain"
	"github.com/cloo-solutions/ragchat/internal/retrieval"
	"github.com/cloo-solutions/ragchat/internal/service"
)

const maxSearchK = 50

var errSearchK = domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("k must be between 0 and %d (0 uses the configured top-k)", maxSearchK))

type ChatService interface {
	Ask(ctx context.Context, question string) (*service.Answer, error)
	Search(ctx context.Context, query string, k int) ([]retrieval.Result, error)
	Stats() service.Stats
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type AskRequest struct {
	Question string `json:"question"`
}

type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type ResultResponse struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type AskResponse struct {
	Answer  string           `json:"answer"`
	Context []ResultResponse `json:"context"`
}

type SearchResponse struct {
	Results []ResultResponse `json:"results"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	Chunks     int    `json:"chunks"`
	Dimensions int    `json:"dimensions"`
}

// ResultsToResponse converts ranked results for JSON output. Unscored chunks
// report 0 since JSON has no infinity.
func ResultsToResponse(results []retrieval.Result) []ResultResponse {
	out := make([]ResultResponse, 0, len(results))
	for _, r := range results {
		score := r.Score
		if score == retrieval.Unscored {
			score = 0
		}
		out = append(out, ResultResponse{Index: r.Index, Text: r.Text, Score: score})
	}
	return out
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		fail(w, r, domain.ErrEmptyQuestion)
		return
	}

	answer, err := h.svc.Ask(r.Context(), req.Question)
	if err != nil {
		fail(w, r, err)
		return
	}
	middleware.TraceFrom(r.Context()).RecordChunks(len(answer.Context))

	api.Success(w, http.StatusOK, AskResponse{
		Answer:  answer.Response,
		Context: ResultsToResponse(answer.Context),
	})
}

func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		fail(w, r, domain.ErrEmptyQuery)
		return
	}
	if req.K < 0 || req.K > maxSearchK {
		fail(w, r, errSearchK)
		return
	}

	results, err := h.svc.Search(r.Context(), req.Query, req.K)
	if err != nil {
		fail(w, r, err)
		return
	}
	middleware.TraceFrom(r.Context()).RecordChunks(len(results))

	api.Success(w, http.StatusOK, SearchResponse{Results: ResultsToResponse(results)})
}

// fail writes err as an error response and records its code on the request
// trace for the access log.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	middleware.TraceFrom(r.Context()).RecordError(err)
	api.HandleError(w, err)
}

func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.svc.Stats()
	api.Success(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Chunks:     stats.Chunks,
		Dimensions: stats.Dimensions,
	})
}
