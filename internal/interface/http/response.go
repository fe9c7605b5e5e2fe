package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
	"github.com/malla-ucn/malla-estudiante/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
}

const apiVersion = "v1"

// writeJSON writes a successful JSON response.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSONWithMeta(w, r, status, data, nil)
}

// writeJSONWithMeta writes a JSON response with custom metadata.
func writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data any, meta *ResponseMeta) {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = apiVersion

	encode(w, status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: getRequestID(r.Context()),
	})
}

// writeJSONError writes an error JSON response.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	encode(w, status, JSONResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: &ResponseMeta{
			Timestamp: time.Now().UTC(),
			Version:   apiVersion,
		},
		RequestID: getRequestID(r.Context()),
	})
}

func encode(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeError maps an application error onto a status code and error body.
// Server-side failures are logged; client errors are not.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rej *academic.Rejection
		ve  validator.ValidationErrors
		de  *shared.DomainError
	)
	message := err.Error()
	if errors.As(err, &de) {
		message = de.Message
	}

	switch {
	case errors.As(err, &ve):
		writeJSONError(w, r, http.StatusBadRequest, "validation_failed", "Request validation failed", fieldErrors(ve))
	case asRejection(err, &rej):
		writeJSONError(w, r, http.StatusUnprocessableEntity, "plan_rejected", rej.Reason, rej)
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", message, nil)
	case shared.IsAlreadyExists(err):
		writeJSONError(w, r, http.StatusConflict, "already_exists", message, nil)
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", message, nil)
	case shared.IsUnauthorized(err):
		writeJSONError(w, r, http.StatusUnauthorized, "unauthorized", message, nil)
	case errors.Is(err, shared.ErrForbidden):
		writeJSONError(w, r, http.StatusForbidden, "forbidden", message, nil)
	case shared.IsExternalService(err):
		logger.FromContext(r.Context()).WarnContext(r.Context(), "upstream failure",
			slog.String("path", r.URL.Path), logger.Err(err))
		writeJSONError(w, r, http.StatusBadGateway, "upstream_unavailable", "The university API is unavailable", nil)
	default:
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), logger.Err(err))
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred", nil)
	}
}

// asRejection finds a planner rejection carried as DomainError detail or
// directly in the chain.
func asRejection(err error, target **academic.Rejection) bool {
	if rej, ok := shared.DetailOf(err).(*academic.Rejection); ok && rej != nil {
		*target = rej
		return true
	}
	return errors.As(err, target)
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func fieldErrors(ve validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, FieldError{
			Field: fe.Namespace(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}
