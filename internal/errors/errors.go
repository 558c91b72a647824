// Package errors defines the coded error surface shared by the HTTP
// server: stable machine-readable codes, a JSON response envelope, and
// helpers for writing them.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes for HTTP responses.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ErrorBody is the inner payload of an HTTP error response.
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HTTPErrorResponse is the JSON envelope every error response uses.
type HTTPErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error is a coded application error that maps onto an HTTP status.
type Error struct {
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// BadRequest builds a 400 error.
func BadRequest(message string, err error) *Error {
	return &Error{Code: CodeBadRequest, Status: http.StatusBadRequest, Message: message, Err: err}
}

// NotFound builds a 404 error.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: message}
}

// Conflict builds a 409 error.
func Conflict(message string, err error) *Error {
	return &Error{Code: CodeConflict, Status: http.StatusConflict, Message: message, Err: err}
}

// Internal builds a 500 error.
func Internal(message string, err error) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: message, Err: err}
}

// Unavailable builds a 503 error.
func Unavailable(message string, err error) *Error {
	return &Error{Code: CodeServiceUnavailable, Status: http.StatusServiceUnavailable, Message: message, Err: err}
}

// ErrorEnvelope is a transport-neutral error description built up fluently
// before being written as an HTTP response.
type ErrorEnvelope struct {
	Code          string
	Message       string
	CorrelationID string
	Context       map[string]any
}

// NewErrorEnvelope creates an envelope with a code and message.
func NewErrorEnvelope(code, message string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: code, Message: message}
}

// WithCorrelationID attaches a request correlation ID.
func (e *ErrorEnvelope) WithCorrelationID(id string) *ErrorEnvelope {
	e.CorrelationID = id
	return e
}

// WithContext attaches structured context. The map must be JSON
// marshalable; values that are not are rejected up front so the failure
// surfaces where the context was built, not mid-response.
func (e *ErrorEnvelope) WithContext(ctx map[string]any) (*ErrorEnvelope, error) {
	if _, err := json.Marshal(ctx); err != nil {
		return e, fmt.Errorf("envelope context not serializable: %w", err)
	}
	e.Context = ctx
	return e, nil
}

// WriteJSON writes the envelope as an HTTPErrorResponse with the given
// status code.
func (e *ErrorEnvelope) WriteJSON(w http.ResponseWriter, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		RequestID: e.CorrelationID,
		Details:   e.Context,
	}})
}

// RespondWithError writes err as a coded JSON error response. Coded
// *Error values keep their status and code; anything else becomes an
// INTERNAL_ERROR. The request ID header placed by the middleware chain
// is echoed into the body when present.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	var coded *Error
	if !errors.As(err, &coded) {
		coded = Internal("internal server error", err)
	}

	requestID := w.Header().Get("X-Request-ID")
	if requestID == "" && r != nil {
		requestID = r.Header.Get("X-Request-ID")
	}

	NewErrorEnvelope(coded.Code, coded.Message).
		WithCorrelationID(requestID).
		WriteJSON(w, coded.Status)
}
