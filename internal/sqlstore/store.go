// Package sqlstore exposes the tables of a MySQL-compatible database as an
// entity store. Tables become entity types and foreign keys become relations.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"model-graphql/internal/dbexec"
	"model-graphql/internal/introspection"
	"model-graphql/internal/logging"
	"model-graphql/internal/naming"
	"model-graphql/internal/schemafilter"
	"model-graphql/internal/sqltype"
	"model-graphql/internal/store"
)

// ErrNotLoaded is returned by Search and Read before the first Load.
var ErrNotLoaded = errors.New("sql store schema not loaded")

// Config configures a Store.
type Config struct {
	// Introspection reads information_schema; usually the *sql.DB.
	Introspection introspection.Queryer
	// Executor runs data queries. Defaults to Introspection when it is a
	// dbexec.SQLQueryer.
	Executor     dbexec.QueryExecutor
	DatabaseName string
	Filters      schemafilter.Config
	Naming       naming.Config
	Logger       *logging.Logger
}

// Store is a store.Store over SQL tables.
type Store struct {
	introspection introspection.Queryer
	executor      dbexec.QueryExecutor
	databaseName  string
	filters       schemafilter.Config
	namer         *naming.Namer
	logger        *logging.Logger
	mapping       atomic.Pointer[Mapping]
	// buildMu guards the namer, which BuildMapping resets.
	buildMu sync.Mutex
}

// New creates a Store. Call Load before serving queries.
func New(cfg Config) (*Store, error) {
	if cfg.Introspection == nil {
		return nil, fmt.Errorf("sql store requires an introspection queryer")
	}
	if cfg.DatabaseName == "" {
		return nil, fmt.Errorf("sql store requires a database name")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}
	executor := cfg.Executor
	if executor == nil {
		q, ok := cfg.Introspection.(dbexec.SQLQueryer)
		if !ok {
			return nil, fmt.Errorf("sql store requires an executor")
		}
		executor = dbexec.NewStandardExecutor(q)
	}
	namingCfg := cfg.Naming
	if namingCfg.PluralOverrides == nil {
		namingCfg = naming.DefaultConfig()
	}
	logger := cfg.Logger.WithFields(slog.String("component", "sql_store"))
	return &Store{
		introspection: cfg.Introspection,
		executor:      executor,
		databaseName:  cfg.DatabaseName,
		filters:       cfg.Filters,
		namer:         naming.New(namingCfg, logger.Logger),
		logger:        logger,
	}, nil
}

// Fingerprint hashes the structural metadata of the database.
func (s *Store) Fingerprint(ctx context.Context) (string, error) {
	fp, err := introspection.ComputeFingerprint(ctx, s.introspection, s.databaseName)
	if err != nil {
		return "", err
	}
	return fp.Value, nil
}

// Load introspects the database, installs the resulting mapping and
// returns its entity schema. Concurrent Search and Read calls keep using
// the previous mapping until the swap.
func (s *Store) Load(ctx context.Context) (*store.Schema, error) {
	ctx, span := startSpan(ctx, "sqlstore.load", attribute.String("db.name", s.databaseName))
	defer span.End()

	dbSchema, err := introspection.IntrospectDatabaseContext(ctx, s.introspection, s.databaseName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if report := schemafilter.Apply(dbSchema, s.filters); !report.Empty() {
		s.logger.Debug("schema filters applied",
			slog.Any("dropped_tables", report.DroppedTables),
			slog.Any("dropped_columns", report.DroppedColumns),
		)
	}

	s.buildMu.Lock()
	mapping := BuildMapping(dbSchema, s.namer, s.logger.Logger)
	s.buildMu.Unlock()
	s.mapping.Store(mapping)

	s.logger.Info("entity types mapped",
		slog.Int("tables", len(dbSchema.Tables)),
		slog.Int("entity_types", len(mapping.tables)),
	)
	span.SetAttributes(attribute.Int("store.entity_types", len(mapping.tables)))
	return mapping.schema, nil
}

// Schema implements store.Store.
func (s *Store) Schema(context.Context) (*store.Schema, error) {
	m := s.mapping.Load()
	if m == nil {
		return nil, ErrNotLoaded
	}
	return m.schema, nil
}

// Search implements store.Store.
func (s *Store) Search(ctx context.Context, entityType string, filter store.Filter, opts store.Options) ([]store.ID, error) {
	tm, err := s.table(entityType)
	if err != nil {
		return nil, err
	}
	plan, err := planSearch(tm, filter, opts)
	if err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "sqlstore.search",
		attribute.String("db.table", tm.table),
		attribute.String("db.statement", plan.SQL),
	)
	defer span.End()

	rows, err := s.query(ctx, plan)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := []store.ID{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		ids = append(ids, store.ID(id))
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("db.rows", len(ids)))
	return ids, nil
}

// Read implements store.Store. Records come back in the order of ids and
// ids without a row are skipped.
func (s *Store) Read(ctx context.Context, entityType string, ids []store.ID, attributes []string) ([]store.Record, error) {
	tm, err := s.table(entityType)
	if err != nil {
		return nil, err
	}

	var columns []*binding
	var relations []*binding
	for _, name := range attributes {
		b, err := tm.binding(name)
		if err != nil {
			return nil, err
		}
		if b.attr.Kind == store.OneToMany {
			relations = append(relations, b)
		} else {
			columns = append(columns, b)
		}
	}
	if len(ids) == 0 {
		return []store.Record{}, nil
	}

	ctx, span := startSpan(ctx, "sqlstore.read",
		attribute.String("db.table", tm.table),
		attribute.Int("store.ids", len(ids)),
	)
	defer span.End()

	unique := uniqueIDs(ids)
	byID, err := s.readRows(ctx, tm, columns, unique)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	for _, rel := range relations {
		if err := s.readOneToMany(ctx, rel, unique, byID); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
	}

	out := make([]store.Record, 0, len(ids))
	for _, id := range ids {
		record, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, maps.Clone(record))
	}
	return out, nil
}

func (s *Store) readRows(ctx context.Context, tm *tableModel, columns []*binding, ids []store.ID) (map[store.ID]store.Record, error) {
	names := make([]string, len(columns))
	for i, b := range columns {
		names[i] = b.column
	}
	plan, err := planRead(tm, names, ids)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, plan)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	byID := make(map[store.ID]store.Record, len(ids))
	values := make([]any, len(columns)+1)
	targets := make([]any, len(values))
	for i := range values {
		targets[i] = &values[i]
	}
	for rows.Next() {
		clear(values)
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		pk, err := sqltype.KindInt.Decode(values[0])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", tm.table, tm.pk, err)
		}
		id, ok := store.ToID(pk)
		if !ok {
			return nil, fmt.Errorf("%s: primary key %v is not an integer", tm.table, values[0])
		}
		record := make(store.Record, len(columns))
		for i, b := range columns {
			v, err := attributeValue(b, values[i+1])
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", tm.table, b.column, err)
			}
			record[b.attr.Name] = v
		}
		byID[id] = record
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return byID, nil
}

func (s *Store) readOneToMany(ctx context.Context, b *binding, ids []store.ID, byID map[store.ID]store.Record) error {
	for _, record := range byID {
		record[b.attr.Name] = []store.ID{}
	}
	plan, err := planOneToMany(b, ids)
	if err != nil {
		return err
	}
	rows, err := s.query(ctx, plan)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var parent, child int64
		if err := rows.Scan(&parent, &child); err != nil {
			return err
		}
		record, ok := byID[store.ID(parent)]
		if !ok {
			continue
		}
		record[b.attr.Name] = append(record[b.attr.Name].([]store.ID), store.ID(child))
	}
	return rows.Err()
}

func (s *Store) table(entityType string) (*tableModel, error) {
	m := s.mapping.Load()
	if m == nil {
		return nil, ErrNotLoaded
	}
	return m.table(entityType)
}

func (s *Store) query(ctx context.Context, plan SQLQuery) (dbexec.Rows, error) {
	logging.FromContext(ctx).Debug("sql query",
		slog.String("sql", plan.SQL),
		slog.Int("args", len(plan.Args)),
	)
	return s.executor.QueryContext(ctx, plan.SQL, plan.Args...)
}

// attributeValue decodes a scanned column by its SQL type. Ids and
// many-to-one references become store.ID.
func attributeValue(b *binding, raw any) (any, error) {
	v, err := b.kind.Decode(raw)
	if err != nil || v == nil {
		return v, err
	}
	if b.attr.Kind != store.ManyToOne && b.attr.Name != store.IDAttribute {
		return v, nil
	}
	if id, ok := store.ToID(v); ok {
		return id, nil
	}
	return v, nil
}

func uniqueIDs(ids []store.ID) []store.ID {
	seen := make(map[store.ID]struct{}, len(ids))
	out := make([]store.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("model-graphql/sqlstore")
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
