package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"model-graphql/internal/config"
	"model-graphql/internal/dbexec"
	"model-graphql/internal/logging"
	"model-graphql/internal/memstore"
	"model-graphql/internal/observability"
	"model-graphql/internal/schemarefresh"
	"model-graphql/internal/sqlstore"
	"model-graphql/internal/store"
)

const maxRetryInterval = 30 * time.Second

// backend is an opened entity store with its refresh source and health probe.
type backend struct {
	name   string
	store  store.Store
	source schemarefresh.Source
	health func(context.Context) error

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }
}

// refreshableStore is a store whose schema the refresh manager reloads.
type refreshableStore interface {
	store.Store
	schemarefresh.Source
}

func (a *App) openBackend(ctx context.Context, cleanup *cleanupStack) (*backend, error) {
	if !a.cfg.UsesDatabase() {
		st, err := memstore.LoadFixtureFile(a.cfg.Store.FixtureFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load fixture: %w", err)
		}
		a.logger.Info("using in-memory store", slog.String("fixture_file", a.cfg.Store.FixtureFile))
		return newBackend(config.BackendMemory, st, func(context.Context) error { return nil }), nil
	}

	a.logger.Info("connecting to database",
		slog.String("host", a.cfg.Database.Host),
		slog.Int("port", a.cfg.Database.Port),
		slog.String("database_effective", a.effectiveDatabase),
		slog.String("database_source", a.databaseSource),
		slog.Bool("dsn_present", a.dsnPresent),
	)

	db, dbStatsReg, err := connectDB(a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	cleanup.push("database", func(_ context.Context) error {
		if dbStatsReg != nil {
			if err := dbStatsReg.Unregister(); err != nil {
				a.logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
			}
		}
		return db.Close()
	})

	if err := configureDatabase(ctx, a.cfg, a.logger, db, a.effectiveDatabase); err != nil {
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	st, err := sqlstore.New(sqlstore.Config{
		Introspection: db,
		Executor:      dbexec.NewStandardExecutor(db),
		DatabaseName:  a.effectiveDatabase,
		Filters:       a.cfg.SchemaFilters,
		Naming:        a.cfg.Naming,
		Logger:        a.logger,
	})
	if err != nil {
		return nil, err
	}

	b := newBackend(config.BackendSQL, st, db.PingContext)
	b.db = db
	b.dbStatsReg = dbStatsReg
	return b, nil
}

func newBackend(name string, st refreshableStore, health func(context.Context) error) *backend {
	return &backend{name: name, store: st, source: st, health: health}
}

func connectDB(cfg *config.Config, logger *logging.Logger) (*sql.DB, interface{ Unregister() error }, error) {
	// verify-ca and verify-full need the custom TLS config registered before the DSN is used.
	if err := cfg.Database.RegisterTLS(); err != nil {
		return nil, nil, fmt.Errorf("failed to register database TLS config: %w", err)
	}
	dsn := cfg.Database.DSN()

	if !cfg.Observability.MetricsEnabled && !cfg.Observability.TracingEnabled {
		db, err := sql.Open("mysql", dsn)
		return db, nil, err
	}

	opts := []otelsql.Option{otelsql.WithAttributes(semconv.DBSystemMySQL)}
	if cfg.Observability.TracingEnabled {
		opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
	}
	commenter := cfg.Observability.SQLCommenterEnabled && cfg.Observability.TracingEnabled
	if commenter {
		opts = append(opts, otelsql.WithSQLCommenter(true))
	} else if cfg.Observability.SQLCommenterEnabled {
		logger.Warn("SQLCommenter requires tracing to be enabled - skipping SQLCommenter")
	}

	db, err := otelsql.Open("mysql", dsn, opts...)
	if err != nil {
		return nil, nil, err
	}

	var dbStatsReg interface{ Unregister() error }
	if cfg.Observability.MetricsEnabled {
		dbStatsReg, err = otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(semconv.DBSystemMySQL))
		if err != nil {
			logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		}
	}

	logger.Info("database instrumentation enabled",
		slog.Bool("metrics", cfg.Observability.MetricsEnabled),
		slog.Bool("tracing", cfg.Observability.TracingEnabled),
		slog.Bool("sqlcommenter", commenter),
	)
	return db, dbStatsReg, nil
}

func configureDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB, effectiveDatabase string) error {
	db.SetMaxOpenConns(cfg.Database.Pool.MaxOpen)
	db.SetMaxIdleConns(cfg.Database.Pool.MaxIdle)
	db.SetConnMaxLifetime(cfg.Database.Pool.MaxLifetime)

	if err := waitForDatabase(ctx, cfg.Database.ConnectionTimeout, cfg.Database.ConnectionRetryInterval, logger, db.PingContext); err != nil {
		return err
	}

	logger.Info("connected to database",
		slog.String("database_effective", effectiveDatabase),
		slog.Int("pool_max_open", cfg.Database.Pool.MaxOpen),
		slog.Int("pool_max_idle", cfg.Database.Pool.MaxIdle),
		slog.Duration("pool_max_lifetime", cfg.Database.Pool.MaxLifetime),
	)
	return nil
}

// waitForDatabase retries ping with exponential backoff, capped at
// maxRetryInterval, until timeout elapses. A zero timeout tries once.
func waitForDatabase(ctx context.Context, timeout, interval time.Duration, logger *logging.Logger, ping func(context.Context) error) error {
	if timeout == 0 {
		return ping(ctx)
	}

	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		err := ping(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = min(interval*2, maxRetryInterval)
	}
}

func startSchemaManager(ctx context.Context, cfg *config.Config, logger *logging.Logger, source schemarefresh.Source, metrics *observability.SchemaRefreshMetrics) (*schemarefresh.Manager, context.CancelFunc, error) {
	minInterval := cfg.Server.SchemaRefreshMinInterval
	maxInterval := cfg.Server.SchemaRefreshMaxInterval
	if !cfg.UsesDatabase() {
		// Fixture schemas only change through the admin reload.
		minInterval, maxInterval = -1, -1
	}

	manager, err := schemarefresh.NewManager(ctx, schemarefresh.Config{
		Source:      source,
		Logger:      logger,
		Metrics:     metrics,
		MinInterval: minInterval,
		MaxInterval: maxInterval,
	})
	if err != nil {
		return nil, nil, err
	}

	schemaCtx, schemaCancel := context.WithCancel(context.Background())
	manager.Start(schemaCtx)
	return manager, schemaCancel, nil
}
