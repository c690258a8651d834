package gqlquery

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"model-graphql/internal/logging"
	"model-graphql/internal/observability"
	"model-graphql/internal/store"
)

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("model-graphql/gqlquery")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func search(ctx context.Context, st store.Store, entityType string, filter store.Filter, opts store.Options) ([]store.ID, error) {
	ctx, span := startSpan(ctx, "store.search",
		attribute.String("store.entity_type", entityType),
		attribute.Int("store.filter.predicates", len(filter)),
		attribute.Int("store.limit", opts.Limit),
		attribute.Int("store.offset", opts.Offset),
	)
	defer span.End()

	start := time.Now()
	ids, err := st.Search(ctx, entityType, filter, opts)
	observeStoreCall(ctx, "search", entityType, time.Since(start), len(ids), err)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("store.ids", len(ids)))
	return ids, nil
}

func read(ctx context.Context, st store.Store, entityType string, ids []store.ID, attributes []string) ([]store.Record, error) {
	ctx, span := startSpan(ctx, "store.read",
		attribute.String("store.entity_type", entityType),
		attribute.Int("store.ids", len(ids)),
		attribute.StringSlice("store.attributes", attributes),
	)
	defer span.End()

	start := time.Now()
	records, err := st.Read(ctx, entityType, ids, attributes)
	observeStoreCall(ctx, "read", entityType, time.Since(start), len(records), err)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return records, nil
}

func observeStoreCall(ctx context.Context, operation, entityType string, duration time.Duration, count int, err error) {
	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordStoreCall(ctx, operation, entityType, duration, count, err)
	}
	logger := logging.FromContext(ctx)
	if err != nil {
		logger.Debug("store call failed",
			slog.String("operation", operation),
			slog.String("entity_type", entityType),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("store call",
		slog.String("operation", operation),
		slog.String("entity_type", entityType),
		slog.Int("count", count),
		slog.Duration("duration", duration),
	)
}
