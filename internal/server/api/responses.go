package api

// responses.go provides the helpers handlers use to write responses.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/tra-portal/tra-portal/internal/logger"
)

// DataResponse is the envelope used for single records.
type DataResponse struct {
	Success        bool   `json:"success"`
	Data           any    `json:"data"`
	BlockchainTxID string `json:"blockchainTxId,omitempty"`
}

// Pagination describes a page of a list response.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// ListResponse is the envelope used for lists.
type ListResponse struct {
	Success    bool       `json:"success"`
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type nestedError struct {
	Message string    `json:"message"`
	Code    ErrorCode `json:"code"`
	Details any       `json:"details,omitempty"`
}

// RespondWithError writes err in its response shape.
//
// Errors that are not *ApiError are reported as internal errors. The full
// error is logged server-side; the client only sees the sanitized message.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *ApiError
	if !errors.As(err, &apiErr) {
		apiErr = NewInternalError(err)
	}

	reqLogger := logger.ContextRequestLogger(r.Context())
	level := slog.LevelWarn
	if apiErr.status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	reqLogger.Log(r.Context(), level, "Request failed",
		slog.String("error", err.Error()),
		slog.Int("status_code", apiErr.status),
		slog.String("error_code", string(apiErr.code)),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var body any
	switch apiErr.shape {
	case ShapeFlat:
		body = nestedError{Message: apiErr.message, Code: apiErr.code, Details: apiErr.details}
	case ShapeString:
		body = map[string]string{"error": apiErr.message}
	default:
		body = map[string]nestedError{"error": {Message: apiErr.message, Code: apiErr.code, Details: apiErr.details}}
	}
	RespondWithJSONPayload(w, apiErr.status, body)
}

// RespondWithJSONPayload sends payload as JSON with the given status code.
func RespondWithJSONPayload(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			// headers are already written
			slog.Error("Failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// RespondWithData wraps a single record in the data envelope.
func RespondWithData(w http.ResponseWriter, statusCode int, data any, txID string) {
	RespondWithJSONPayload(w, statusCode, DataResponse{Success: true, Data: data, BlockchainTxID: txID})
}

// RespondWithList wraps a page of records in the list envelope.
func RespondWithList(w http.ResponseWriter, items any, p Pagination) {
	RespondWithJSONPayload(w, http.StatusOK, ListResponse{Success: true, Data: items, Pagination: p})
}

// RespondWithFile sends data as a download named filename.
func RespondWithFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// RespondWithStatusCodeOnly sends a response with only a status code (no body)
func RespondWithStatusCodeOnly(w http.ResponseWriter, statusCode int) {
	w.WriteHeader(statusCode)
}

// DecodeJSONBody decodes the request body into v.
func DecodeJSONBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return NewRequestTooLargeError(fmt.Sprintf("Request body exceeds maximum allowed size (%d bytes)", maxErr.Limit))
		}
		return NewMalformedRequestError("Invalid request body", err)
	}
	return nil
}
