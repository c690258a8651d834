package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GraphQLMetrics holds custom metrics for GraphQL operations and the entity
// store calls they compile to.
type GraphQLMetrics struct {
	requestDuration   metric.Float64Histogram
	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	activeRequests    metric.Int64UpDownCounter
	queryDepth        metric.Int64Histogram
	resultsCount      metric.Int64Histogram
	storeCallDuration metric.Float64Histogram
	storeCallCounter  metric.Int64Counter
	storeCallRecords  metric.Int64Histogram
	typeMapRebuilds   metric.Int64Counter
}

// InitGraphQLMetrics initializes GraphQL-specific metrics
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter("model-graphql")

	requestDuration, err := meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of active GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	queryDepth, err := meter.Int64Histogram(
		"graphql.query.depth",
		metric.WithDescription("Depth of GraphQL queries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query depth histogram: %w", err)
	}

	resultsCount, err := meter.Int64Histogram(
		"graphql.results.count",
		metric.WithDescription("Number of top-level results returned by GraphQL queries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create results count histogram: %w", err)
	}

	storeCallDuration, err := meter.Float64Histogram(
		"store.call.duration",
		metric.WithDescription("Duration of entity store calls in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store call duration histogram: %w", err)
	}

	storeCallCounter, err := meter.Int64Counter(
		"store.calls.total",
		metric.WithDescription("Total number of entity store calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store call counter: %w", err)
	}

	storeCallRecords, err := meter.Int64Histogram(
		"store.call.records",
		metric.WithDescription("Number of ids or records returned by an entity store call"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store call records histogram: %w", err)
	}

	typeMapRebuilds, err := meter.Int64Counter(
		"graphql.type_map.rebuilds.total",
		metric.WithDescription("Number of times the type name mapping was rebuilt"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create type map rebuild counter: %w", err)
	}

	return &GraphQLMetrics{
		requestDuration:   requestDuration,
		requestCounter:    requestCounter,
		errorCounter:      errorCounter,
		activeRequests:    activeRequests,
		queryDepth:        queryDepth,
		resultsCount:      resultsCount,
		storeCallDuration: storeCallDuration,
		storeCallCounter:  storeCallCounter,
		storeCallRecords:  storeCallRecords,
		typeMapRebuilds:   typeMapRebuilds,
	}, nil
}

// RecordRequest records a GraphQL request with its duration and outcome
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	attrs := []attribute.KeyValue{
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	}

	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation_type", operationType),
		))
	}
}

// RecordQueryDepth records the depth of a GraphQL query
func (m *GraphQLMetrics) RecordQueryDepth(ctx context.Context, depth int64, operationType string) {
	m.queryDepth.Record(ctx, depth, metric.WithAttributes(
		attribute.String("operation_type", operationType),
	))
}

// RecordResultsCount records the number of results returned
func (m *GraphQLMetrics) RecordResultsCount(ctx context.Context, count int64, entityType string) {
	m.resultsCount.Record(ctx, count, metric.WithAttributes(
		attribute.String("entity_type", entityType),
	))
}

// RecordStoreCall records one search or read against the entity store.
func (m *GraphQLMetrics) RecordStoreCall(ctx context.Context, operation, entityType string, duration time.Duration, count int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("entity_type", entityType),
		attribute.Bool("success", err == nil),
	}
	m.storeCallDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.storeCallCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err == nil {
		m.storeCallRecords.Record(ctx, int64(count), metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("entity_type", entityType),
		))
	}
}

// RecordTypeMapRebuild records a rebuild of the type name mapping.
func (m *GraphQLMetrics) RecordTypeMapRebuild(ctx context.Context) {
	m.typeMapRebuilds.Add(ctx, 1)
}

// IncrementActiveRequests increments the active requests counter
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the GraphQLMetrics instance
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, error) {
	metrics, err := InitGraphQLMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}

	logger.Info("custom GraphQL metrics initialized")
	return metrics, nil
}

type graphQLMetricsContextKey struct{}

// ContextWithGraphQLMetrics stores GraphQL metrics in the provided context.
func ContextWithGraphQLMetrics(ctx context.Context, metrics *GraphQLMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, graphQLMetricsContextKey{}, metrics)
}

// GraphQLMetricsFromContext retrieves GraphQL metrics from the context.
func GraphQLMetricsFromContext(ctx context.Context) *GraphQLMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(graphQLMetricsContextKey{}).(*GraphQLMetrics)
	return metrics
}
