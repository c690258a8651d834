package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"model-graphql/internal/gqlquery"
)

// Init initializes all runtime resources. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			_ = cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, graphqlMetrics, schemaRefreshMetrics, securityMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	b, err := a.openBackend(ctx, &cleanup)
	if err != nil {
		return err
	}

	manager, schemaCancel, err := startSchemaManager(ctx, a.cfg, a.logger, b.source, schemaRefreshMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize schema refresh manager: %w", err)
	}
	cleanup.push("schema manager", func(shutdownCtx context.Context) error {
		schemaCancel()
		return manager.Wait(shutdownCtx)
	})

	executor := gqlquery.NewExecutor(gqlquery.Config{
		Limits: gqlquery.Limits{
			MaxDepth:     a.cfg.Server.GraphQLMaxDepth,
			DefaultLimit: a.cfg.Server.GraphQLDefaultLimit,
		},
		TypeCacheSize: a.cfg.Server.TypeCacheSize,
	})

	graphqlHandler, err := buildGraphQLHandler(ctx, a.cfg, a.logger, executor, b.store, manager, graphqlMetrics, securityMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize GraphQL handler: %w", err)
	}

	adminHandler, err := buildAdminHandler(ctx, a.cfg, a.logger, manager, securityMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize admin handler: %w", err)
	}

	mux := buildRouter(a.cfg, a.logger, b.health, graphqlHandler, adminHandler, meterProvider)
	handler := wrapHTTPHandler(a.cfg, a.logger, mux)

	serverAddr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv, certSource, err := buildServer(a.cfg, a.logger, handler, serverAddr)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.logger.Info("server initialized",
		slog.String("store_backend", b.name),
		slog.Int("graphql_max_depth", a.cfg.Server.GraphQLMaxDepth),
		slog.Int("graphql_default_limit", a.cfg.Server.GraphQLDefaultLimit),
		slog.Int("context_variables", len(a.cfg.Server.Context)),
	)

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.graphqlMetrics = graphqlMetrics
	a.schemaRefreshMetrics = schemaRefreshMetrics
	a.securityMetrics = securityMetrics
	a.tracerProvider = tracerProvider
	a.db = b.db
	a.dbStatsReg = b.dbStatsReg
	a.store = b.store
	a.manager = manager
	a.schemaCancel = schemaCancel
	a.executor = executor
	a.graphqlHandler = graphqlHandler
	a.adminHandler = adminHandler
	a.mux = mux
	a.handler = handler
	a.serverAddr = serverAddr
	a.srv = srv
	a.certSource = certSource
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
