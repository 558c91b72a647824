// Package middleware provides the HTTP middleware chain: request
// correlation, panic recovery, and request logging.
package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/gridwright/gridwright/internal/errors"
	"github.com/gridwright/gridwright/internal/observability"
)

// ErrorResponse is the JSON error envelope written by this package.
type ErrorResponse = errors.HTTPErrorResponse

// Recovery converts panics in downstream handlers into 500 responses so
// a single bad request cannot take down the server.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				requestID := GetRequestID(r.Context())

				observability.ServerLogger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("request_id", requestID),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)

				envelope := errors.NewErrorEnvelope(
					errors.CodeInternal,
					fmt.Sprintf("panic: %v", rec),
				).WithCorrelationID(requestID)

				writeErrorResponse(w, envelope, http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// ErrorHandler is an alias for Recovery kept for route configuration
// that names the concern rather than the mechanism.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}

func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, statusCode int) {
	envelope.WriteJSON(w, statusCode)
}
