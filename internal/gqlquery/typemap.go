package gqlquery

import (
	"context"
	"log/slog"
	"sync"

	"model-graphql/internal/logging"
	"model-graphql/internal/naming"
	"model-graphql/internal/observability"
	"model-graphql/internal/store"
)

// DefaultTypeMapCacheSize bounds the number of schema fingerprints kept.
const DefaultTypeMapCacheSize = 8

// TypeMap maps GraphQL type names to entity types.
type TypeMap map[string]string

// TypeName derives the GraphQL type name of an entity type,
// e.g. "sale.order" -> "SaleOrder".
func TypeName(entityType string) string {
	return naming.TypeName(entityType)
}

// BuildTypeMap builds the type mapping for every entity type of schema.
// Entity types whose names collide get a numeric suffix.
func BuildTypeMap(schema *store.Schema) TypeMap {
	namer := naming.Default()
	entityTypes := schema.EntityTypes()
	m := make(TypeMap, len(entityTypes))
	for _, entityType := range entityTypes {
		m[namer.RegisterType(entityType)] = entityType
	}
	return m
}

// Names inverts the mapping: entity type to the GraphQL type name it was
// registered under.
func (m TypeMap) Names() map[string]string {
	names := make(map[string]string, len(m))
	for typeName, entityType := range m {
		names[entityType] = typeName
	}
	return names
}

// TypeMapCache caches type mappings by schema fingerprint. A schema whose
// fingerprint was not seen before gets a fresh mapping; the oldest entry is
// evicted once the cache is full.
type TypeMapCache struct {
	mu      sync.Mutex
	size    int
	entries map[string]TypeMap
	order   []string
}

// NewTypeMapCache creates a cache holding up to size mappings.
func NewTypeMapCache(size int) *TypeMapCache {
	if size <= 0 {
		size = DefaultTypeMapCacheSize
	}
	return &TypeMapCache{
		size:    size,
		entries: make(map[string]TypeMap, size),
	}
}

// Get returns the mapping for schema, building it when needed.
// Schemas without a fingerprint are never cached.
func (c *TypeMapCache) Get(ctx context.Context, schema *store.Schema) TypeMap {
	if schema.Fingerprint == "" {
		return BuildTypeMap(schema)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.entries[schema.Fingerprint]; ok {
		return m
	}

	m := BuildTypeMap(schema)
	if len(c.order) >= c.size {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[schema.Fingerprint] = m
	c.order = append(c.order, schema.Fingerprint)

	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordTypeMapRebuild(ctx)
	}
	logging.FromContext(ctx).Debug("type map rebuilt",
		slog.String("fingerprint", schema.Fingerprint),
		slog.Int("types", len(m)),
	)
	return m
}

// Len reports the number of cached mappings.
func (c *TypeMapCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
