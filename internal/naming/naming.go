package naming

import (
	"log/slog"
	"strings"
	"unicode"
)

// Namer derives GraphQL type names and relation attribute names from
// backend entity types and tables.
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		resolver: NewCollisionResolver(logger),
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset clears the collision resolver state, allowing the namer to be reused
// for a new schema build.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// TypeName converts an entity type to its GraphQL type name by title-casing
// each dot separated segment and concatenating them.
// Example: "sale.order" -> "SaleOrder", "res.partner_bank" -> "ResPartner_Bank"
func TypeName(entityType string) string {
	var b strings.Builder
	for _, segment := range strings.Split(entityType, ".") {
		b.WriteString(title(segment))
	}
	return b.String()
}

// title upper-cases the first letter of every run of letters and lower-cases
// the rest. Non-letters start a new run.
func title(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// RegisterType registers an entity type and returns its resolved GraphQL type
// name. Entity types whose names collide get a numeric suffix.
func (n *Namer) RegisterType(entityType string) string {
	return n.resolver.RegisterType(TypeName(entityType), entityType)
}

// EntityType converts a table name to an entity type.
// Example: "sale_order" -> "sale.order"
func EntityType(tableName string) string {
	return strings.ReplaceAll(strings.ToLower(tableName), "_", ".")
}

// OneToManyAttributeName generates the attribute name for a one-to-many
// relationship backed by fkColumn on sourceTable.
// If isOnlyFK is true (single FK from source table), uses the pluralized table
// name. Otherwise, prefixes with the FK column name for disambiguation.
// Example: isOnlyFK=true: "order_line" -> "order_lines"
// Example: isOnlyFK=false, fkColumn="author_id": "post" -> "author_posts"
func (n *Namer) OneToManyAttributeName(sourceTable, fkColumn string, isOnlyFK bool) string {
	tablePlural := n.Pluralize(strings.ToLower(sourceTable))
	if isOnlyFK {
		return tablePlural
	}
	return stripFKSuffix(strings.ToLower(fkColumn)) + "_" + tablePlural
}

// RegisterAttribute registers a column attribute on an entity type and returns
// the resolved name. Columns are registered first and always keep their name.
func (n *Namer) RegisterAttribute(entityType, name string) string {
	return n.resolver.RegisterField(entityType, name, "column:"+name)
}

// RegisterRelationAttribute registers a one-to-many attribute. If the name
// collides with a column, "_rel" is appended before numeric suffixing.
func (n *Namer) RegisterRelationAttribute(entityType, name, source string) string {
	if n.resolver.FieldExists(entityType, name) {
		name += "_rel"
	}
	return n.resolver.RegisterField(entityType, name, "relationship:"+source)
}

func stripFKSuffix(name string) string {
	for _, suffix := range []string{"_id", "_fk"} {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return name[:len(name)-len(suffix)]
		}
	}
	return name
}
