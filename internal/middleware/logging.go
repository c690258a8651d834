// Package middleware holds the HTTP policies wrapped around the GraphQL and
// admin handlers: request logging, bearer auth, CORS, rate limiting and
// GraphQL request instrumentation.
package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"model-graphql/internal/logging"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries the request correlation id.
const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware attaches a request-scoped logger carrying the request id
// and logs request start and completion.
func LoggingMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			reqLogger := logger.WithRequestID(requestID).WithFields(slog.String("component", "http"))
			ctx := logging.WithLogger(r.Context(), reqLogger)
			ctx = logging.WithRequestIDContext(ctx, requestID)

			if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
				span.SetAttributes(attribute.String("http.request_id", requestID))
			}

			reqLogger.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)

			recorder := newStatusRecorder(w, false)
			next.ServeHTTP(recorder, r.WithContext(ctx))

			duration := time.Since(start)
			level := slog.LevelInfo
			switch {
			case recorder.status >= 500:
				level = slog.LevelError
			case recorder.status >= 400:
				level = slog.LevelWarn
			}
			reqLogger.Log(ctx, level, "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", recorder.status),
				slog.Int64("duration_ms", duration.Milliseconds()),
			)
		})
	}
}

// statusRecorder captures the response status and, when asked to, a copy of
// the body.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
	capture bool
	body    bytes.Buffer
}

func newStatusRecorder(w http.ResponseWriter, captureBody bool) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK, capture: captureBody}
}

func (rw *statusRecorder) WriteHeader(status int) {
	if rw.written {
		return
	}
	rw.status = status
	rw.written = true
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.capture {
		_, _ = rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}
