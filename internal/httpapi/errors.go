package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"famgraph/internal/blob"
	"famgraph/internal/core"
	"famgraph/pkg/domain"
)

// Error codes used in API error bodies.
const (
	CodeInvalidBody  = "invalid_body"
	CodeValidation   = "validation_failed"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeInternal     = "internal_error"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeAPIError writes a single-entry error body.
func writeAPIError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, APIErrorResponse{Errors: []APIErrorDetail{{
		Code:   code,
		Status: strconv.Itoa(status),
		Detail: detail,
	}}})
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses. Every
// field of a ValidationError becomes its own entry.
func writeDomainError(w http.ResponseWriter, logger core.Logger, err error) {
	var (
		validation domain.ValidationError
		notFound   domain.NotFoundError
		conflict   domain.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		status := strconv.Itoa(http.StatusBadRequest)
		resp := APIErrorResponse{}
		for _, f := range validation.Fields {
			resp.Errors = append(resp.Errors, APIErrorDetail{Code: CodeValidation, Status: status, Detail: f.Message, Field: f.Field})
		}
		if len(resp.Errors) == 0 {
			resp.Errors = append(resp.Errors, APIErrorDetail{Code: CodeValidation, Status: status, Detail: validation.Error()})
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.As(err, &notFound), errors.Is(err, blob.ErrNotFound):
		writeAPIError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.As(err, &conflict):
		writeAPIError(w, http.StatusConflict, CodeConflict, err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeAPIError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
