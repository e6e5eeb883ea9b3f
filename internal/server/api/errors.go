package api

// errors.go defines the errors returned by the mock server handlers.

import (
	"fmt"
	"net/http"
)

// ErrorCode is the machine-readable code sent in error bodies.
type ErrorCode string

const (
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidTIN        ErrorCode = "INVALID_TIN_FORMAT"
	ErrCodeMalformedRequest  ErrorCode = "MALFORMED_REQUEST"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeIdempotency       ErrorCode = "IDEMPOTENCY_KEY_REUSED"
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeRequestTooLarge   ErrorCode = "REQUEST_TOO_LARGE"
	ErrCodeInternalError     ErrorCode = "INTERNAL_ERROR"
)

// Shape selects how an error is laid out in the response body.
//
// Backends in the wild disagree on this, so the mock server uses all three
// forms and clients must understand each of them.
type Shape int

const (
	// ShapeNested: {"error": {"message": ..., "code": ..., "details": ...}}
	ShapeNested Shape = iota

	// ShapeFlat: {"message": ..., "code": ...}
	ShapeFlat

	// ShapeString: {"error": "..."}
	ShapeString
)

// ApiError is a handler failure with the status and body it maps to.
type ApiError struct {
	status  int
	code    ErrorCode
	message string
	details any
	shape   Shape

	// wrapped is logged server-side, never sent to the client
	wrapped error
}

func (e *ApiError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *ApiError) Unwrap() error        { return e.wrapped }
func (e *ApiError) Code() ErrorCode      { return e.code }
func (e *ApiError) StatusCode() int      { return e.status }
func (e *ApiError) Message() string      { return e.message }
func (e *ApiError) ResponseShape() Shape { return e.shape }

// WithDetails attaches a details value (e.g. per-field messages).
func (e *ApiError) WithDetails(details any) *ApiError {
	e.details = details
	return e
}

// WithShape overrides the body layout.
func (e *ApiError) WithShape(s Shape) *ApiError {
	e.shape = s
	return e
}

func NewValidationError(msg string) *ApiError {
	return &ApiError{status: http.StatusBadRequest, code: ErrCodeValidation, message: msg}
}

func NewInvalidTINError(msg string) *ApiError {
	return &ApiError{status: http.StatusBadRequest, code: ErrCodeInvalidTIN, message: msg}
}

func NewMalformedRequestError(msg string, err error) *ApiError {
	return &ApiError{status: http.StatusBadRequest, code: ErrCodeMalformedRequest, message: msg, wrapped: err}
}

// NewNotFoundError uses the flat shape.
func NewNotFoundError(msg string) *ApiError {
	return &ApiError{status: http.StatusNotFound, code: ErrCodeNotFound, message: msg, shape: ShapeFlat}
}

func NewConflictError(msg string) *ApiError {
	return &ApiError{status: http.StatusConflict, code: ErrCodeConflict, message: msg}
}

func NewIdempotencyMismatchError(msg string) *ApiError {
	return &ApiError{status: http.StatusUnprocessableEntity, code: ErrCodeIdempotency, message: msg}
}

// NewRateLimitError uses the string shape.
func NewRateLimitError(msg string) *ApiError {
	return &ApiError{status: http.StatusTooManyRequests, code: ErrCodeRateLimitExceeded, message: msg, shape: ShapeString}
}

func NewRequestTooLargeError(msg string) *ApiError {
	return &ApiError{status: http.StatusRequestEntityTooLarge, code: ErrCodeRequestTooLarge, message: msg}
}

func NewInternalError(err error) *ApiError {
	return &ApiError{status: http.StatusInternalServerError, code: ErrCodeInternalError, message: "An internal error occurred", wrapped: err}
}
