package server

import (
	"net/http"

	"github.com/cloo-solutions/ragchat/internal/api/handlers"
	"github.com/cloo-solutions/ragchat/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes int64 = 1 << 20

type RouterConfig struct {
	// TokenValidator guards /v1 when set; nil leaves the API open.
	TokenValidator middleware.TokenValidator
	ChatHandler    *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Trace)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.LimitBody(maxBodyBytes))

	r.Get("/health", cfg.ChatHandler.Health)

	r.Route("/v1", func(r chi.Router) {
		if cfg.TokenValidator != nil {
			r.Use(middleware.BearerAuth(cfg.TokenValidator))
		}

		r.Post("/ask", cfg.ChatHandler.Ask)
		r.Post("/search", cfg.ChatHandler.Search)
	})

	return r
}
