package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"model-graphql/internal/gqlrequest"
	"model-graphql/internal/logging"
	"model-graphql/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// GraphQLTracingMiddleware wraps query execution in a graphql.execute span
// carrying the request analysis.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil || strings.TrimSpace(analysis.Envelope.Query) == "" {
				next.ServeHTTP(w, r)
				return
			}
			meta, _ := gqlrequest.ExecMetaFromContext(r.Context())

			ctx, span := otel.Tracer("model-graphql/graphql").Start(r.Context(), "graphql.execute")
			defer span.End()

			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				))
			}
			if span.IsRecording() {
				span.SetAttributes(observability.GraphQLSpanAttributes(analysis, meta)...)
			}

			recorder := newStatusRecorder(w, false)
			next.ServeHTTP(recorder, r.WithContext(ctx))

			if span.IsRecording() {
				span.SetAttributes(attribute.Int("http.response.status_code", recorder.status))
			}
		})
	}
}
