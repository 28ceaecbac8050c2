package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const correlationIDContextKey contextKey = "correlationID"

// CorrelationMiddleware extracts the correlation ID from the configured
// header, generating one when absent, then echoes it on the response,
// stores it in the request context and attaches it to the active span.
func CorrelationMiddleware(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get(header)
			if correlationID == "" {
				correlationID = uuid.NewString()
			}

			w.Header().Set(header, correlationID)

			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				span.SetAttributes(attribute.String("correlation_id", correlationID))
			}

			ctx := context.WithValue(r.Context(), correlationIDContextKey, correlationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CorrelationIDFromContext returns the correlation ID stored by
// CorrelationMiddleware, or the empty string.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDContextKey).(string)
	return id
}

// RequestLogMiddleware emits one structured log event per request with
// the correlation ID, status and duration.
func RequestLogMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("correlation_id", CorrelationIDFromContext(r.Context())).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Msg("request served")
		})
	}
}
