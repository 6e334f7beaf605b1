package api

import (
	"encoding/json"
	"net/http"

	"github.com/domenicocinque/web-rag/internal/domain"
)

// StatusClientClosedRequest is returned when the caller went away mid-run.
const StatusClientClosedRequest = 499

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Stage string `json:"stage,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch domain.CodeOf(err) {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeCanceled:
		return StatusClientClosedRequest
	case domain.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeUpstreamGeneration, domain.ErrCodeEmbedding:
		return http.StatusBadGateway
	case domain.ErrCodeSearchUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrCodeInvalidChunk, domain.ErrCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes an error response carrying the domain code and the
// failing pipeline stage, if any.
func HandleError(w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)
	if code == "" {
		code = domain.ErrCodeInternalError
	}

	JSON(w, DomainErrorToHTTP(err), ErrorResponse{
		Error: err.Error(),
		Code:  code,
		Stage: string(domain.StageOf(err)),
	})
}
