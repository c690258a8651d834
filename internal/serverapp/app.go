// Package serverapp assembles and runs the model-graphql HTTP server.
package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"model-graphql/internal/config"
	"model-graphql/internal/gqlquery"
	"model-graphql/internal/logging"
	"model-graphql/internal/observability"
	"model-graphql/internal/schemarefresh"
	"model-graphql/internal/store"
	"model-graphql/internal/tlscert"
)

// App owns runtime resources for the model-graphql server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	effectiveDatabase string
	databaseSource    string
	dsnPresent        bool

	meterProvider        *observability.MeterProvider
	graphqlMetrics       *observability.GraphQLMetrics
	schemaRefreshMetrics *observability.SchemaRefreshMetrics
	securityMetrics      *observability.SecurityMetrics
	tracerProvider       *observability.TracerProvider

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }

	store        store.Store
	manager      *schemarefresh.Manager
	schemaCancel context.CancelFunc
	executor     *gqlquery.Executor

	graphqlHandler http.Handler
	adminHandler   http.Handler
	mux            *http.ServeMux
	handler        http.Handler

	serverAddr string
	srv        *http.Server
	certSource *tlscert.Source

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	app := &App{cfg: cfg, logger: logger}
	if cfg.UsesDatabase() {
		effectiveDatabase, databaseSource, err := cfg.Database.EffectiveDatabaseName()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve effective database configuration: %w", err)
		}
		app.effectiveDatabase = effectiveDatabase
		app.databaseSource = databaseSource
		app.dsnPresent = strings.TrimSpace(cfg.Database.ConnectionString) != ""
	}
	return app, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the fully wrapped HTTP handler. It is nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
