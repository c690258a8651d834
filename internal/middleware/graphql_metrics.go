package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"model-graphql/internal/gqlrequest"
	"model-graphql/internal/observability"
)

const unknownOperationType = "unknown"

// GraphQLMetricsMiddleware records request count, duration, errors and
// in-flight requests, and places the metrics in the request context so the
// executor can record depth, result counts and store calls.
func GraphQLMetricsMiddleware(metrics *observability.GraphQLMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			ctx := observability.ContextWithGraphQLMetrics(r.Context(), metrics)
			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			operationType := unknownOperationType
			analysis := gqlrequest.AnalysisFromContext(ctx)
			if analysis == nil {
				analysis = gqlrequest.AnalyzeRequest(r)
			}
			if analysis.OperationType != "" {
				operationType = analysis.OperationType
			}

			start := time.Now()
			recorder := newStatusRecorder(w, true)
			next.ServeHTTP(recorder, r.WithContext(ctx))

			hasErrors := recorder.status >= 400 || responseHasGraphQLErrors(recorder.body.Bytes())
			metrics.RecordRequest(ctx, time.Since(start), hasErrors, operationType)
		})
	}
}

func responseHasGraphQLErrors(body []byte) bool {
	var payload struct {
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &payload); err != nil {
		return false
	}
	return len(payload.Errors) > 0
}
