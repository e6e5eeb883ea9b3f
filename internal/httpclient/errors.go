package httpclient

// errors.go defines the normalized error returned for every failed request.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Error codes set by the client itself. Server-reported codes are passed through as-is.
const (
	// CodeNetwork is used when no response was received (DNS, connection refused, timeout).
	CodeNetwork = "NETWORK_ERROR"

	// CodeInvalidTIN is used when a TIN does not reduce to exactly 9 digits.
	CodeInvalidTIN = "INVALID_TIN_FORMAT"

	// CodeValidation is used for other client-side input checks.
	CodeValidation = "VALIDATION_ERROR"

	// CodeDecode is used when a successful response body cannot be decoded.
	CodeDecode = "DECODE_ERROR"
)

// UnknownErrorMessage is the message used when a failed response carries no usable text.
const UnknownErrorMessage = "Unknown error"

// APIError is the normalized form of every request failure.
//
// Message is always a non-empty plain string that can be shown to a user as-is.
type APIError struct {
	// Message is the human-readable error
	Message string

	// Code is the server-supplied or client error code, empty when none was given
	Code string

	// Details is the decoded details value from the error body, if any
	Details any

	// Context is the endpoint path the request was sent to
	Context string

	// StatusCode is the HTTP status, 0 when no response was received
	StatusCode int

	// Body is the raw response body
	Body []byte

	// wrapped is the transport error, if any
	wrapped error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error { return e.wrapped }

// NewValidationError creates a client-side validation error.
// Validation errors are raised before any request is sent and are never retried.
func NewValidationError(code, endpoint, msg string) error {
	if code == "" {
		code = CodeValidation
	}
	return &APIError{Code: code, Context: endpoint, Message: msg}
}

// WrapNetworkError wraps a transport failure for endpoint.
func WrapNetworkError(err error, endpoint string) *APIError {
	return &APIError{
		Code:    CodeNetwork,
		Context: endpoint,
		Message: fmt.Sprintf("network error: %v", err),
		wrapped: err,
	}
}

// WrapDecodeError wraps a failure to decode the body of a successful response.
func WrapDecodeError(err error, endpoint string) *APIError {
	return &APIError{
		Code:    CodeDecode,
		Context: endpoint,
		Message: fmt.Sprintf("failed to decode response: %v", err),
		wrapped: err,
	}
}

// IsRetryable reports whether a failed request may succeed if sent again:
// network failures, 408, 429 and 5xx responses. Client-side validation failures
// and other 4xx rejections are final. Context cancellation is never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}

	switch {
	case apiErr.StatusCode == 0:
		return apiErr.Code == CodeNetwork
	case apiErr.StatusCode == http.StatusRequestTimeout,
		apiErr.StatusCode == http.StatusTooManyRequests,
		apiErr.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// Message returns the display message of err: APIError.Message when err is (or
// wraps) an APIError, err.Error() otherwise.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// CodeOf returns the error code carried by err, or "".
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// newResponseError builds the APIError for a response with status >= 400.
func newResponseError(status int, body []byte, endpoint string) *APIError {
	msg, code, details := parseErrorBody(body)
	return &APIError{
		Message:    msg,
		Code:       code,
		Details:    details,
		Context:    endpoint,
		StatusCode: status,
		Body:       body,
	}
}

// parseErrorBody extracts a message, code and details from an error body.
//
// The backend uses several shapes. They are tried in this order and the first
// usable string becomes the message:
//
//  1. {"error": {"message": "...", "code": "..."}}  (or "error": "...")
//  2. {"message": "..."} or {"message": {"message": "..."}}
//  3. {"code": "..."}
//
// Anything else yields UnknownErrorMessage.
func parseErrorBody(body []byte) (msg, code string, details any) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return UnknownErrorMessage, "", nil
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return UnknownErrorMessage, "", nil
	}

	errField := root.Get("error")
	if errField.IsObject() {
		if s, ok := usableString(errField.Get("message")); ok {
			msg = s
		} else if s, ok := usableString(errField.Get("code")); ok {
			msg = s
		}
		code, _ = usableString(errField.Get("code"))
		if d := errField.Get("details"); d.Exists() {
			details = d.Value()
		}
	} else if s, ok := usableString(errField); ok && errField.Type == gjson.String {
		msg = s
	}

	if msg == "" {
		m := root.Get("message")
		if s, ok := usableString(m); ok && m.Type == gjson.String {
			msg = s
		} else if m.IsObject() {
			if s, ok := usableString(m.Get("message")); ok {
				msg = s
			}
		}
	}

	if msg == "" {
		if s, ok := usableString(root.Get("code")); ok {
			msg = s
		}
	}

	if code == "" {
		code, _ = usableString(root.Get("code"))
	}
	if details == nil {
		if d := root.Get("details"); d.Exists() {
			details = d.Value()
		}
	}

	if msg == "" {
		msg = UnknownErrorMessage
	}
	return msg, code, details
}

// usableString returns r as a non-empty string when r is a string or number.
func usableString(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		return s, s != ""
	case gjson.Number:
		return r.Raw, true
	default:
		return "", false
	}
}
