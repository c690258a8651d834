// Package schemarefresh keeps the entity schema of a store current by polling
// a cheap fingerprint and reloading when it changes.
package schemarefresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"model-graphql/internal/logging"
	"model-graphql/internal/observability"
	"model-graphql/internal/store"
)

const (
	defaultMinInterval = 30 * time.Second
	defaultMaxInterval = 5 * time.Minute
)

// ErrNotReady is returned while no snapshot has been loaded.
var ErrNotReady = errors.New("schema not ready")

// Source is a store whose entity schema can change at runtime.
type Source interface {
	// Fingerprint identifies the current backing structure without loading it.
	Fingerprint(ctx context.Context) (string, error)
	// Load rebuilds the entity schema and makes the source serve it.
	Load(ctx context.Context) (*store.Schema, error)
}

// Snapshot is an immutable view of a loaded schema.
type Snapshot struct {
	Schema *store.Schema
	// SourceFingerprint is the fingerprint the schema was loaded at.
	SourceFingerprint string
	BuiltAt           time.Time
}

// Config controls schema refresh behavior.
type Config struct {
	Source      Source
	Logger      *logging.Logger
	Metrics     *observability.SchemaRefreshMetrics
	MinInterval time.Duration
	MaxInterval time.Duration
}

// Manager maintains and refreshes schema snapshots.
type Manager struct {
	source      Source
	logger      *logging.Logger
	metrics     *observability.SchemaRefreshMetrics
	minInterval time.Duration
	maxInterval time.Duration
	active      atomic.Pointer[Snapshot]
	// refreshMu serializes loads from the poll loop and manual refreshes.
	refreshMu sync.Mutex
	wg        sync.WaitGroup
}

// NewManager loads the initial snapshot and returns a manager.
// Negative intervals disable polling.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("schema refresh manager requires a source")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}

	minInterval := cfg.MinInterval
	maxInterval := cfg.MaxInterval
	if minInterval == 0 {
		minInterval = defaultMinInterval
	}
	if maxInterval == 0 {
		maxInterval = defaultMaxInterval
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}

	m := &Manager{
		source:      cfg.Source,
		logger:      cfg.Logger.WithFields(slog.String("component", "schema_refresh")),
		metrics:     cfg.Metrics,
		minInterval: minInterval,
		maxInterval: maxInterval,
	}

	start := time.Now()
	fingerprint, err := m.source.Fingerprint(ctx)
	if err != nil {
		m.logger.Warn("failed to compute schema fingerprint", slog.String("error", err.Error()))
	}
	if _, err := m.load(ctx, fingerprint); err != nil {
		m.recordRefresh(ctx, observability.TriggerStartup, observability.OutcomeFailed, start)
		return nil, err
	}
	m.recordRefresh(ctx, observability.TriggerStartup, observability.OutcomeSwapped, start)
	return m, nil
}

// Start begins the background refresh loop. It returns immediately.
func (m *Manager) Start(ctx context.Context) {
	if m.minInterval <= 0 || m.maxInterval <= 0 {
		m.logger.Info("schema refresh disabled")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.refreshLoop(ctx)
	}()
}

// Wait blocks until the refresh loop exits or the context is canceled.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the active snapshot, or nil before the first load.
func (m *Manager) Current() *Snapshot {
	return m.active.Load()
}

// Schema returns the active entity schema.
func (m *Manager) Schema(context.Context) (*store.Schema, error) {
	snapshot := m.Current()
	if snapshot == nil {
		return nil, ErrNotReady
	}
	return snapshot.Schema, nil
}

// RefreshNow forces a reload and swap regardless of the fingerprint.
func (m *Manager) RefreshNow(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	fingerprint, err := m.source.Fingerprint(ctx)
	if err != nil {
		m.recordRefresh(ctx, observability.TriggerManual, observability.OutcomeFailed, start)
		return nil, err
	}
	snapshot, err := m.load(ctx, fingerprint)
	if err != nil {
		m.recordRefresh(ctx, observability.TriggerManual, observability.OutcomeFailed, start)
		return nil, err
	}
	m.recordRefresh(ctx, observability.TriggerManual, observability.OutcomeSwapped, start)
	return snapshot, nil
}

func (m *Manager) refreshLoop(ctx context.Context) {
	interval := m.minInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("schema refresh stopped")
			return
		case <-timer.C:
			interval = m.refreshOnce(ctx, interval)
			timer.Reset(interval)
		}
	}
}

// refreshOnce polls the fingerprint and returns the next poll interval.
// Unchanged schemas back off toward maxInterval; changes and failures
// return to minInterval.
func (m *Manager) refreshOnce(ctx context.Context, interval time.Duration) time.Duration {
	start := time.Now()
	fingerprint, err := m.source.Fingerprint(ctx)
	if err != nil {
		m.logger.Warn("schema fingerprint check failed", slog.String("error", err.Error()))
		m.recordRefresh(ctx, observability.TriggerPoll, observability.OutcomeFailed, start)
		return m.minInterval
	}

	if current := m.Current(); current != nil && fingerprint != "" && fingerprint == current.SourceFingerprint {
		m.recordRefresh(ctx, observability.TriggerPoll, observability.OutcomeUnchanged, start)
		return nextInterval(interval, m.minInterval, m.maxInterval)
	}

	m.logger.Info("schema change detected, rebuilding", slog.String("fingerprint", fingerprint))
	snapshot, err := m.load(ctx, fingerprint)
	if err != nil {
		m.logger.Error("failed to rebuild schema", slog.String("error", err.Error()))
		m.recordRefresh(ctx, observability.TriggerPoll, observability.OutcomeFailed, start)
		return m.minInterval
	}
	m.recordRefresh(ctx, observability.TriggerPoll, observability.OutcomeSwapped, start)
	m.logger.Info("schema refresh complete",
		slog.String("fingerprint", snapshot.SourceFingerprint),
		slog.Int("entity_types", len(snapshot.Schema.Models)),
	)
	return m.minInterval
}

func (m *Manager) load(ctx context.Context, fingerprint string) (*Snapshot, error) {
	ctx, span := otel.Tracer("model-graphql/schemarefresh").Start(ctx, "schema.load")
	defer span.End()

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	schema, err := m.source.Load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	snapshot := &Snapshot{
		Schema:            schema,
		SourceFingerprint: fingerprint,
		BuiltAt:           time.Now(),
	}
	m.active.Store(snapshot)
	m.metrics.RecordSnapshot(len(schema.Models))
	span.SetAttributes(
		attribute.Int("schema.entity_types", len(schema.Models)),
		attribute.String("schema.fingerprint", schema.Fingerprint),
	)
	m.logger.Debug("schema snapshot built", slog.Int("entity_types", len(schema.Models)))
	return snapshot, nil
}

func nextInterval(current, minInterval, maxInterval time.Duration) time.Duration {
	if current < minInterval {
		return minInterval
	}
	next := current + current/2
	if next > maxInterval {
		return maxInterval
	}
	return next
}

func (m *Manager) recordRefresh(ctx context.Context, trigger observability.RefreshTrigger, outcome observability.RefreshOutcome, start time.Time) {
	m.metrics.RecordRefresh(context.WithoutCancel(ctx), trigger, outcome, time.Since(start))
}
