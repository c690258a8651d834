package config

import (
	"maps"
	"time"
)

// PoolConfig holds connection pool parameters.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// DatabaseTLSConfig holds TLS settings for database connections.
type DatabaseTLSConfig struct {
	// Mode is one of off, skip-verify, verify-ca or verify-full.
	Mode string `mapstructure:"mode"`
	// CAFile verifies the server certificate. Required for verify-ca and verify-full.
	CAFile string `mapstructure:"ca_file"`
	// CertFile and KeyFile enable client certificate authentication.
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	// ServerName overrides the host name checked in verify-full mode.
	ServerName string `mapstructure:"server_name"`
}

// DatabaseConfig holds database connection parameters for the sql backend.
type DatabaseConfig struct {
	// ConnectionString is a go-sql-driver/mysql DSN. When set it takes
	// precedence over the discrete fields (MGQL_DATABASE_DSN).
	ConnectionString string `mapstructure:"dsn"`
	// ConnectionStringFile reads the DSN from a file; "@-" reads stdin.
	ConnectionStringFile string `mapstructure:"dsn_file"`

	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`
	Database       string `mapstructure:"database"`

	TLS  DatabaseTLSConfig `mapstructure:"tls"`
	Pool PoolConfig        `mapstructure:"pool"`

	// ConnectionTimeout bounds startup retries; zero fails on the first error.
	ConnectionTimeout       time.Duration `mapstructure:"connection_timeout"`
	ConnectionRetryInterval time.Duration `mapstructure:"connection_retry_interval"`
}

const defaultDatabaseName = "test"

// AuthConfig holds bearer token authentication parameters.
type AuthConfig struct {
	OIDCEnabled   bool          `mapstructure:"oidc_enabled"`
	OIDCIssuerURL string        `mapstructure:"oidc_issuer_url"`
	OIDCAudience  string        `mapstructure:"oidc_audience"`
	OIDCClockSkew time.Duration `mapstructure:"oidc_clock_skew"`
	// OIDCCAFile adds a CA bundle for reaching a privately signed issuer.
	OIDCCAFile string `mapstructure:"oidc_ca_file"`
}

// AdminConfig controls the schema reload endpoint.
type AdminConfig struct {
	SchemaReloadEnabled bool   `mapstructure:"schema_reload_enabled"`
	AuthToken           string `mapstructure:"auth_token"`
	AuthTokenFile       string `mapstructure:"auth_token_file"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port                     int           `mapstructure:"port"`
	GraphQLMaxDepth          int           `mapstructure:"graphql_max_depth"`
	GraphQLDefaultLimit      int           `mapstructure:"graphql_default_limit"`
	TypeCacheSize            int           `mapstructure:"type_cache_size"`
	SchemaRefreshMinInterval time.Duration `mapstructure:"schema_refresh_min_interval"`
	SchemaRefreshMaxInterval time.Duration `mapstructure:"schema_refresh_max_interval"`
	// Context holds ambient variables every query can reference.
	Context              map[string]any `mapstructure:"context"`
	Auth                 AuthConfig     `mapstructure:"auth"`
	Admin                AdminConfig    `mapstructure:"admin"`
	RateLimitEnabled     bool           `mapstructure:"rate_limit_enabled"`
	RateLimitRPS         float64        `mapstructure:"rate_limit_rps"`
	RateLimitBurst       int            `mapstructure:"rate_limit_burst"`
	CORSEnabled          bool           `mapstructure:"cors_enabled"`
	CORSAllowedOrigins   []string       `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string       `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string       `mapstructure:"cors_allowed_headers"`
	CORSExposeHeaders    []string       `mapstructure:"cors_expose_headers"`
	CORSAllowCredentials bool           `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int            `mapstructure:"cors_max_age"`
	ReadTimeout          time.Duration  `mapstructure:"read_timeout"`
	WriteTimeout         time.Duration  `mapstructure:"write_timeout"`
	IdleTimeout          time.Duration  `mapstructure:"idle_timeout"`
	ShutdownTimeout      time.Duration  `mapstructure:"shutdown_timeout"`
	HealthCheckTimeout   time.Duration  `mapstructure:"health_check_timeout"`

	// TLSMode is off, auto (self-signed) or file.
	TLSMode        string `mapstructure:"tls_mode"`
	TLSCertFile    string `mapstructure:"tls_cert_file"`
	TLSKeyFile     string `mapstructure:"tls_key_file"`
	TLSAutoCertDir string `mapstructure:"tls_auto_cert_dir"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // Enable OTLP log export
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName         string        `mapstructure:"service_name"`
	ServiceVersion      string        `mapstructure:"service_version"`
	Environment         string        `mapstructure:"environment"`
	MetricsEnabled      bool          `mapstructure:"metrics_enabled"`
	TracingEnabled      bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio    float64       `mapstructure:"trace_sample_ratio"`
	SQLCommenterEnabled bool          `mapstructure:"sqlcommenter_enabled"` // Inject trace context into SQL queries
	Logging             LoggingConfig `mapstructure:"logging"`

	// Global OTLP settings (defaults for all signals)
	OTLP OTLPConfig `mapstructure:"otlp"`

	// Signal-specific overrides (optional)
	Traces  *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs    *OTLPConfig `mapstructure:"logs,omitempty"`
	Metrics *OTLPConfig `mapstructure:"metrics,omitempty"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // "none", "gzip"
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// GetTracesConfig returns the effective OTLP config for traces.
func (c *ObservabilityConfig) GetTracesConfig() OTLPConfig {
	return c.OTLP.overlay(c.Traces)
}

// GetLogsConfig returns the effective OTLP config for logs.
func (c *ObservabilityConfig) GetLogsConfig() OTLPConfig {
	return c.OTLP.overlay(c.Logs)
}

// GetMetricsConfig returns the effective OTLP config for metrics.
func (c *ObservabilityConfig) GetMetricsConfig() OTLPConfig {
	return c.OTLP.overlay(c.Metrics)
}

// overlay applies the non-empty fields of a signal override to the global
// settings. Insecure always comes from the override when one is present.
func (base OTLPConfig) overlay(override *OTLPConfig) OTLPConfig {
	if override == nil {
		return base
	}
	result := base
	setIfNonEmpty := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIfNonEmpty(&result.Endpoint, override.Endpoint)
	setIfNonEmpty(&result.Protocol, override.Protocol)
	setIfNonEmpty(&result.TLSCertFile, override.TLSCertFile)
	setIfNonEmpty(&result.TLSClientCertFile, override.TLSClientCertFile)
	setIfNonEmpty(&result.TLSClientKeyFile, override.TLSClientKeyFile)
	setIfNonEmpty(&result.Compression, override.Compression)
	result.Insecure = override.Insecure

	if override.Headers != nil {
		result.Headers = make(map[string]string, len(base.Headers)+len(override.Headers))
		maps.Copy(result.Headers, base.Headers)
		maps.Copy(result.Headers, override.Headers)
	}
	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	if override.RetryMaxAttempts != 0 {
		result.RetryEnabled = override.RetryEnabled
		result.RetryMaxAttempts = override.RetryMaxAttempts
	}
	return result
}
