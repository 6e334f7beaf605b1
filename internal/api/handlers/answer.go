package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/domenicocinque/web-rag/internal/api"
	"github.com/domenicocinque/web-rag/internal/domain"
	"github.com/domenicocinque/web-rag/internal/service"
)

type PipelineService interface {
	Run(ctx context.Context, query string) (*service.RunReport, error)
}

type AnswerHandler struct {
	svc PipelineService
}

func NewAnswerHandler(svc PipelineService) *AnswerHandler {
	return &AnswerHandler{svc: svc}
}

type AnswerRequest struct {
	Query string `json:"query"`
}

type ReplyResponse struct {
	Reply string `json:"reply"`
}

// Search answers GET ?query= with a bare {"reply": "..."} body.
func (h *AnswerHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		api.HandleError(w, domain.ErrEmptyQuery)
		return
	}

	report, err := h.svc.Run(r.Context(), query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, ReplyResponse{Reply: report.Answer})
}

// Answer runs the pipeline for a JSON body and returns the full run report.
func (h *AnswerHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid request body", err))
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		api.HandleError(w, domain.ErrEmptyQuery)
		return
	}

	report, err := h.svc.Run(r.Context(), query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, report)
}
