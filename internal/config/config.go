// Package config loads configuration from files, env vars, and flags, and validates it.
package config

import (
	"model-graphql/internal/naming"
	"model-graphql/internal/schemafilter"
)

// Store backends.
const (
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

// Config holds the application configuration.
type Config struct {
	Store         StoreConfig         `mapstructure:"store"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	SchemaFilters schemafilter.Config `mapstructure:"schema_filters"`
	Naming        naming.Config       `mapstructure:"naming"`
}

// StoreConfig selects the entity store queries run against.
type StoreConfig struct {
	// Backend is "sql" (tables of the configured database) or "memory"
	// (records loaded from FixtureFile).
	Backend     string `mapstructure:"backend"`
	FixtureFile string `mapstructure:"fixture_file"`
}

// UsesDatabase reports whether the configured backend needs a database connection.
func (c *Config) UsesDatabase() bool {
	return c.Store.Backend == "" || c.Store.Backend == BackendSQL
}
