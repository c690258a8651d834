package middleware

import (
	"net/http"

	"model-graphql/internal/gqlrequest"
	"model-graphql/internal/logging"
	"model-graphql/internal/observability"
	"model-graphql/internal/schemarefresh"
)

// SnapshotSource exposes the schema snapshot a request executes against.
type SnapshotSource interface {
	Current() *schemarefresh.Snapshot
}

// GraphQLRequestAnalysisMiddleware decodes and analyzes the GraphQL request
// once and stores the analysis and execution metadata in the request
// context. The request body is left readable for the handler.
func GraphQLRequestAnalysisMiddleware(snapshots SnapshotSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r)
			ctx := gqlrequest.WithAnalysis(r.Context(), analysis)

			var fingerprint, subject string
			if snapshots != nil {
				if snapshot := snapshots.Current(); snapshot != nil {
					fingerprint = snapshot.SourceFingerprint
				}
			}
			if auth, ok := AuthFromContext(ctx); ok {
				subject = auth.Subject
			}
			meta := gqlrequest.NewExecMeta(analysis, fingerprint, subject)
			ctx = gqlrequest.WithExecMeta(ctx, meta)

			if fields := observability.GraphQLLogFields(ctx, analysis, meta); len(fields) > 0 {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(fields...))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
