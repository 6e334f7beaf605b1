package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/domenicocinque/web-rag/internal/api"
	"github.com/domenicocinque/web-rag/internal/domain"
	"github.com/domenicocinque/web-rag/internal/service"
)

type RunLoader interface {
	LoadRun(ctx context.Context, runID string, startedAt time.Time) (*service.RunReport, error)
}

// RunsHandler serves archived run reports.
type RunsHandler struct {
	runs RunLoader
}

func NewRunsHandler(runs RunLoader) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// Get answers GET /runs/{date}/{runID}, date being the UTC start day.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse(time.DateOnly, chi.URLParam(r, "date"))
	if err != nil {
		api.HandleError(w, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "date must be YYYY-MM-DD", err))
		return
	}

	runID := chi.URLParam(r, "runID")
	if runID == "" {
		api.HandleError(w, domain.NewDomainError(domain.ErrCodeValidation, "run id is required"))
		return
	}

	report, err := h.runs.LoadRun(r.Context(), runID, day)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, report)
}
