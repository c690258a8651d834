package serverapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"model-graphql/internal/config"
	"model-graphql/internal/gqlquery"
	"model-graphql/internal/graphqlhttp"
	"model-graphql/internal/logging"
	"model-graphql/internal/middleware"
	"model-graphql/internal/observability"
	"model-graphql/internal/schemarefresh"
	"model-graphql/internal/store"
	"model-graphql/internal/tlscert"
)

const (
	graphqlPath       = "/graphql"
	healthPath        = "/health"
	metricsPath       = "/metrics"
	reloadSchemaPath  = "/admin/reload-schema"
	reloadTimeout     = 15 * time.Second
	schemaReloadLabel = "schema_reload"
)

func oidcAuthConfig(cfg *config.Config) middleware.OIDCAuthConfig {
	return middleware.OIDCAuthConfig{
		Enabled:   cfg.Server.Auth.OIDCEnabled,
		IssuerURL: cfg.Server.Auth.OIDCIssuerURL,
		Audience:  cfg.Server.Auth.OIDCAudience,
		ClockSkew: cfg.Server.Auth.OIDCClockSkew,
		CAFile:    cfg.Server.Auth.OIDCCAFile,
	}
}

// buildGraphQLHandler assembles the /graphql chain:
//
//	logging -> OIDC auth -> request analysis -> metrics -> tracing -> handler
//
// Analysis runs after auth so the execution metadata carries the subject.
func buildGraphQLHandler(ctx context.Context, cfg *config.Config, logger *logging.Logger, executor *gqlquery.Executor, st store.Store, snapshots middleware.SnapshotSource, graphqlMetrics *observability.GraphQLMetrics, securityMetrics *observability.SecurityMetrics) (http.Handler, error) {
	queryHandler, err := graphqlhttp.NewHandler(graphqlhttp.Config{
		Executor: executor,
		Store:    st,
		Context:  cfg.Server.Context,
	})
	if err != nil {
		return nil, err
	}

	handler := middleware.GraphQLTracingMiddleware()(queryHandler)
	if cfg.Observability.MetricsEnabled && graphqlMetrics != nil {
		handler = middleware.GraphQLMetricsMiddleware(graphqlMetrics)(handler)
		logger.Info("GraphQL metrics middleware enabled")
	}
	handler = middleware.GraphQLRequestAnalysisMiddleware(snapshots)(handler)

	if cfg.Server.Auth.OIDCEnabled {
		authMiddleware, err := middleware.OIDCAuthMiddleware(ctx, oidcAuthConfig(cfg), logger, securityMetrics)
		if err != nil {
			return nil, err
		}
		handler = authMiddleware(handler)
		logger.Info("OIDC auth middleware enabled")
	}

	return middleware.LoggingMiddleware(logger)(handler), nil
}

// schemaReloader forces a schema rebuild.
type schemaReloader interface {
	RefreshNow(ctx context.Context) (*schemarefresh.Snapshot, error)
}

// buildAdminHandler guards the reload endpoint with the admin token when one
// is configured, otherwise with OIDC when enabled.
func buildAdminHandler(ctx context.Context, cfg *config.Config, logger *logging.Logger, reloader schemaReloader, securityMetrics *observability.SecurityMetrics) (http.Handler, error) {
	var handler http.Handler = schemaReloadHandler(reloader)

	switch {
	case strings.TrimSpace(cfg.Server.Admin.AuthToken) != "":
		tokenMiddleware, err := middleware.AdminTokenAuthMiddleware(middleware.AdminTokenAuthConfig{
			Token:     cfg.Server.Admin.AuthToken,
			Operation: schemaReloadLabel,
		}, securityMetrics)
		if err != nil {
			return nil, err
		}
		handler = tokenMiddleware(handler)
		logger.Info("admin endpoints require the admin token")
	case cfg.Server.Auth.OIDCEnabled:
		authMiddleware, err := middleware.OIDCAuthMiddleware(ctx, oidcAuthConfig(cfg), logger, securityMetrics)
		if err != nil {
			return nil, err
		}
		handler = authMiddleware(handler)
		logger.Info("admin endpoints require OIDC authentication")
	default:
		logger.Warn("admin endpoints are not authenticated - configure an admin token or OIDC")
	}

	return middleware.LoggingMiddleware(logger)(handler), nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, health func(context.Context) error, graphqlHandler, adminHandler http.Handler, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(graphqlPath, graphqlHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, graphqlPath, http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc(healthPath, healthHandler(health, cfg.Server.HealthCheckTimeout))

	if cfg.Server.Admin.SchemaReloadEnabled {
		mux.Handle(reloadSchemaPath, adminHandler)
		logger.Info("admin endpoint enabled", slog.String("path", reloadSchemaPath))
	}

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		mux.Handle(metricsPath, promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", metricsPath))
	}

	return mux
}

// wrapHTTPHandler applies the transport-level middleware shared by every
// route: HTTP instrumentation, CORS and rate limiting, outermost last.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORSEnabled {
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          cfg.Server.CORSEnabled,
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
			ExposeHeaders:    cfg.Server.CORSExposeHeaders,
			AllowCredentials: cfg.Server.CORSAllowCredentials,
			MaxAge:           cfg.Server.CORSMaxAge,
		})(handler)
	}

	if cfg.Server.RateLimitEnabled {
		handler = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled: cfg.Server.RateLimitEnabled,
			RPS:     cfg.Server.RateLimitRPS,
			Burst:   cfg.Server.RateLimitBurst,
		})(handler)
	}

	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", graphqlPath, healthPath, metricsPath, reloadSchemaPath:
		return rawPath
	default:
		return "/*"
	}
}

func tlsEnabled(cfg *config.Config) bool {
	return cfg.Server.TLSMode != "" && cfg.Server.TLSMode != "off"
}

func buildServer(cfg *config.Config, logger *logging.Logger, handler http.Handler, serverAddr string) (*http.Server, *tlscert.Source, error) {
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if !tlsEnabled(cfg) {
		return srv, nil, nil
	}

	source, err := tlscert.New(tlscert.Config{
		Mode:        cfg.Server.TLSMode,
		CertFile:    cfg.Server.TLSCertFile,
		KeyFile:     cfg.Server.TLSKeyFile,
		AutoCertDir: cfg.Server.TLSAutoCertDir,
	}, logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	srv.TLSConfig, err = source.TLSConfig()
	if err != nil {
		return nil, nil, err
	}

	logger.Info("TLS enabled",
		slog.String("mode", cfg.Server.TLSMode),
		slog.String("cert_source", source.Description()))
	return srv, source, nil
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	secure := tlsEnabled(cfg)

	go func() {
		protocol := "http"
		if secure {
			protocol = "https"
		}

		logAttrs := []any{
			slog.String("protocol", protocol),
			slog.String("address", serverAddr),
			slog.String("graphql_endpoint", graphqlPath),
			slog.String("health_endpoint", healthPath),
			slog.String("log_level", cfg.Observability.Logging.Level),
		}
		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", metricsPath))
		}
		if cfg.Server.RateLimitEnabled {
			logAttrs = append(logAttrs,
				slog.Float64("rate_limit_rps", cfg.Server.RateLimitRPS),
				slog.Int("rate_limit_burst", cfg.Server.RateLimitBurst),
			)
		}
		logger.Info("server starting", logAttrs...)

		var err error
		if secure {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

func healthHandler(check func(context.Context) error, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		if check != nil {
			if err := check(ctx); err != nil {
				reqLogger.Error("health check failed",
					slog.String("error", err.Error()),
					slog.String("check", "store"),
				)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = fmt.Fprint(w, `{"status":"unhealthy","store":"failed"}`)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","store":"ok"}`)
	}
}

type reloadResponse struct {
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint,omitempty"`
	EntityTypes int    `json:"entity_types,omitempty"`
	Message     string `json:"message,omitempty"`
}

func schemaReloadHandler(reloader schemaReloader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeReloadResponse(w, http.StatusMethodNotAllowed, reloadResponse{Status: "error", Message: "method not allowed"})
			return
		}

		logAttrs := []any{
			slog.String("operation", schemaReloadLabel),
			slog.String("remote_addr", r.RemoteAddr),
		}
		if auth, ok := middleware.AuthFromContext(r.Context()); ok {
			logAttrs = append(logAttrs,
				slog.String("authenticated_user", auth.Subject),
				slog.String("issuer", auth.Issuer),
			)
		}
		reqLogger.Info("admin endpoint accessed", logAttrs...)

		ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
		defer cancel()

		snapshot, err := reloader.RefreshNow(ctx)
		if err != nil {
			reqLogger.Error("schema reload failed", slog.String("error", err.Error()))
			writeReloadResponse(w, http.StatusInternalServerError, reloadResponse{Status: "error", Message: "schema reload failed"})
			return
		}

		resp := reloadResponse{Status: "ok", Fingerprint: snapshot.SourceFingerprint}
		if snapshot.Schema != nil {
			resp.EntityTypes = len(snapshot.Schema.Models)
		}
		reqLogger.Info("schema reloaded", append(logAttrs, slog.Int("entity_types", resp.EntityTypes))...)
		writeReloadResponse(w, http.StatusOK, resp)
	}
}

func writeReloadResponse(w http.ResponseWriter, status int, resp reloadResponse) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
