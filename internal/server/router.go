package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/domenicocinque/web-rag/internal/api"
	"github.com/domenicocinque/web-rag/internal/api/handlers"
	"github.com/domenicocinque/web-rag/internal/api/middleware"
)

const maxBodyBytes int64 = 1 << 20

type RouterConfig struct {
	Logger         *zap.Logger
	APIPrefix      string
	RequestTimeout time.Duration
	AnswerHandler  *handlers.AnswerHandler
	// RunsHandler is optional; without a run archive the route is not mounted.
	RunsHandler    *handlers.RunsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route(cfg.APIPrefix, func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
		}

		r.Get("/search", cfg.AnswerHandler.Search)
		r.Post("/answer", cfg.AnswerHandler.Answer)

		if cfg.RunsHandler != nil {
			r.Get("/runs/{date}/{runID}", cfg.RunsHandler.Get)
		}
	})

	return r
}
