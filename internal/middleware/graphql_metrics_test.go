package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"model-graphql/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestGraphQLMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		response      string
		status        int
		wantOperation string
		wantErrors    bool
	}{
		{
			name:          "query",
			body:          `{"query":"query P { ResPartner { id } }"}`,
			response:      `{"data":{"ResPartner":[]}}`,
			status:        http.StatusOK,
			wantOperation: "query",
		},
		{
			name:          "skipped mutation",
			body:          `{"query":"mutation M { write }"}`,
			response:      `{"data":null}`,
			status:        http.StatusOK,
			wantOperation: "mutation",
		},
		{
			name:          "graphql errors with 200",
			body:          `{"query":"{ Missing { id } }"}`,
			response:      `{"errors":[{"message":"unknown type"}]}`,
			status:        http.StatusOK,
			wantOperation: "query",
			wantErrors:    true,
		},
		{
			name:          "undecodable body",
			body:          `{"query":`,
			response:      `{"errors":[{"message":"bad request"}]}`,
			status:        http.StatusBadRequest,
			wantOperation: unknownOperationType,
			wantErrors:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sawMetrics bool
			handler, reader := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				sawMetrics = observability.GraphQLMetricsFromContext(r.Context()) != nil
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.response))
			}))

			req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.True(t, sawMetrics)
			rm := collectMetrics(t, reader)
			assert.Equal(t, int64(1), sumInt64(rm, "graphql.requests.total", tt.wantOperation, &tt.wantErrors))
			wantErrorCount := int64(0)
			if tt.wantErrors {
				wantErrorCount = 1
			}
			assert.Equal(t, wantErrorCount, sumInt64(rm, "graphql.errors.total", tt.wantOperation, nil))
			assert.Equal(t, int64(0), sumInt64(rm, "graphql.requests.active", "", nil))
		})
	}
}

func TestGraphQLMetricsMiddleware_NilMetrics(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	GraphQLMetricsMiddleware(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestResponseHasGraphQLErrors(t *testing.T) {
	assert.True(t, responseHasGraphQLErrors([]byte(`{"errors":[{"message":"x"}]}`)))
	assert.False(t, responseHasGraphQLErrors([]byte(`{"errors":null,"data":{}}`)))
	assert.False(t, responseHasGraphQLErrors([]byte(`{"errors":[]}`)))
	assert.False(t, responseHasGraphQLErrors([]byte(`not json`)))
	assert.False(t, responseHasGraphQLErrors(nil))
}

func setupGraphQLMetricsMiddleware(t *testing.T, next http.Handler) (http.Handler, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	oldProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetMeterProvider(oldProvider)
	})

	metrics, err := observability.InitGraphQLMetrics()
	require.NoError(t, err)
	return GraphQLMetricsMiddleware(metrics)(next), reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

// sumInt64 totals the data points of an int64 sum. An empty operationType
// matches every point.
func sumInt64(rm metricdata.ResourceMetrics, name, operationType string, hasErrors *bool) int64 {
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				if operationType != "" && !hasAttr(point.Attributes, "operation_type", attribute.StringValue(operationType)) {
					continue
				}
				if hasErrors != nil && !hasAttr(point.Attributes, "has_errors", attribute.BoolValue(*hasErrors)) {
					continue
				}
				total += point.Value
			}
		}
	}
	return total
}

func hasAttr(attrs attribute.Set, key attribute.Key, want attribute.Value) bool {
	got, ok := attrs.Value(key)
	return ok && got == want
}
