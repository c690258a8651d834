package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RefreshTrigger says what started a schema refresh.
type RefreshTrigger string

const (
	TriggerStartup RefreshTrigger = "startup"
	TriggerPoll    RefreshTrigger = "poll"
	TriggerManual  RefreshTrigger = "manual"
)

// RefreshOutcome is the result of one refresh attempt.
type RefreshOutcome string

const (
	// OutcomeUnchanged means the fingerprint matched the active snapshot.
	OutcomeUnchanged RefreshOutcome = "unchanged"
	// OutcomeSwapped means a new snapshot was loaded and installed.
	OutcomeSwapped RefreshOutcome = "swapped"
	OutcomeFailed  RefreshOutcome = "failed"
)

// SchemaRefreshMetrics tracks how often the entity schema is checked and
// swapped. A nil *SchemaRefreshMetrics records nothing.
type SchemaRefreshMetrics struct {
	attempts    metric.Int64Counter
	duration    metric.Float64Histogram
	swappedUnix atomic.Int64
	entityTypes atomic.Int64
}

// InitSchemaRefreshMetrics registers the schema refresh instruments on the
// global meter provider.
func InitSchemaRefreshMetrics(logger *slog.Logger) (*SchemaRefreshMetrics, error) {
	meter := otel.Meter("model-graphql")
	m := &SchemaRefreshMetrics{}

	var err error
	if m.attempts, err = meter.Int64Counter(
		"schema.refresh.attempts",
		metric.WithDescription("Schema refresh attempts by trigger and outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create schema refresh counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram(
		"schema.refresh.duration",
		metric.WithDescription("Duration of schema refresh attempts in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create schema refresh duration histogram: %w", err)
	}

	age, err := meter.Float64ObservableGauge(
		"schema.snapshot.age",
		metric.WithDescription("Seconds since the active schema snapshot was installed"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema snapshot age gauge: %w", err)
	}
	entityTypes, err := meter.Int64ObservableGauge(
		"schema.entity_types",
		metric.WithDescription("Number of entity types in the active schema"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create entity type gauge: %w", err)
	}

	if _, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		if swapped := m.swappedUnix.Load(); swapped > 0 {
			o.ObserveFloat64(age, time.Since(time.Unix(swapped, 0)).Seconds())
		}
		o.ObserveInt64(entityTypes, m.entityTypes.Load())
		return nil
	}, age, entityTypes); err != nil {
		return nil, fmt.Errorf("failed to register schema gauge callback: %w", err)
	}

	if logger != nil {
		logger.Info("schema refresh metrics initialized")
	}
	return m, nil
}

// RecordSnapshot notes that a snapshot with entityTypes entity types became
// active.
func (m *SchemaRefreshMetrics) RecordSnapshot(entityTypes int) {
	if m == nil {
		return
	}
	m.entityTypes.Store(int64(entityTypes))
	m.swappedUnix.Store(time.Now().Unix())
}

// RecordRefresh records one refresh attempt.
func (m *SchemaRefreshMetrics) RecordRefresh(ctx context.Context, trigger RefreshTrigger, outcome RefreshOutcome, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("trigger", string(trigger)),
		attribute.String("outcome", string(outcome)),
	)
	m.attempts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}
