package naming

import (
	"fmt"
	"log/slog"
)

// CollisionResolver tracks registered names and resolves collisions
// by applying numeric suffixes when duplicates are detected.
type CollisionResolver struct {
	seenTypes  map[string]string            // GraphQL type name → entity type
	seenFields map[string]map[string]string // entity type → attribute name → source
	logger     *slog.Logger
}

// NewCollisionResolver creates a new collision resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		seenTypes:  make(map[string]string),
		seenFields: make(map[string]map[string]string),
		logger:     logger,
	}
}

// RegisterType registers a GraphQL type name and returns the resolved name.
func (c *CollisionResolver) RegisterType(typeName, entityType string) string {
	return c.resolveCollision(typeName, c.seenTypes, "entity:"+entityType)
}

// RegisterField registers an attribute name within an entity type and returns
// the resolved name.
func (c *CollisionResolver) RegisterField(entityType, name, source string) string {
	if c.seenFields[entityType] == nil {
		c.seenFields[entityType] = make(map[string]string)
	}
	return c.resolveCollision(name, c.seenFields[entityType], source)
}

// FieldExists checks if an attribute name already exists for an entity type.
func (c *CollisionResolver) FieldExists(entityType, name string) bool {
	if fields, ok := c.seenFields[entityType]; ok {
		_, exists := fields[name]
		return exists
	}
	return false
}

func (c *CollisionResolver) resolveCollision(name string, seen map[string]string, source string) string {
	if _, exists := seen[name]; !exists {
		seen[name] = source
		return name
	}

	existingSource := seen[name]
	c.logger.Warn("naming collision detected, applying suffix",
		slog.String("name", name),
		slog.String("existing_source", existingSource),
		slog.String("new_source", source),
	)

	for i := 2; ; i++ {
		suffixed := fmt.Sprintf("%s%d", name, i)
		if _, exists := seen[suffixed]; !exists {
			seen[suffixed] = source
			return suffixed
		}
	}
}
