// Package schemafilter decides which tables and columns become entity types
// and attributes.
//
// Table patterns are shell globs matched case-insensitively against either
// spelling of a table: the SQL name (sale_order) or the entity type it maps
// to (sale.order). Column patterns are keyed by a table pattern, with "*"
// applying to every table.
package schemafilter

import (
	"path"
	"slices"
	"strings"

	"model-graphql/internal/introspection"
	"model-graphql/internal/naming"
)

// Config controls allow/deny filters for tables and columns.
type Config struct {
	AllowTables      []string            `mapstructure:"allow_tables"`
	DenyTables       []string            `mapstructure:"deny_tables"`
	ScanViewsEnabled bool                `mapstructure:"scan_views_enabled"`
	AllowColumns     map[string][]string `mapstructure:"allow_columns"`
	DenyColumns      map[string][]string `mapstructure:"deny_columns"`
}

// Report lists what Apply removed.
type Report struct {
	DroppedTables  []string
	DroppedColumns map[string][]string
}

// Empty reports whether nothing was filtered out.
func (r Report) Empty() bool {
	return len(r.DroppedTables) == 0 && len(r.DroppedColumns) == 0
}

// Apply filters tables, columns and foreign keys in place.
// Missing allow lists default to allow-all and deny rules always win.
// Primary key columns survive column filters so rows stay addressable, and a
// foreign key survives only while both of its ends do.
func Apply(schema *introspection.Schema, cfg Config) Report {
	report := Report{DroppedColumns: map[string][]string{}}
	if schema == nil {
		return report
	}

	kept := make([]introspection.Table, 0, len(schema.Tables))
	for _, table := range schema.Tables {
		if (table.IsView && !cfg.ScanViewsEnabled) || !tableAllowed(table.Name, cfg) {
			report.DroppedTables = append(report.DroppedTables, table.Name)
			continue
		}
		columns := table.Columns[:0:0]
		for _, column := range table.Columns {
			if column.IsPrimaryKey || columnAllowed(table.Name, column.Name, cfg) {
				columns = append(columns, column)
				continue
			}
			report.DroppedColumns[table.Name] = append(report.DroppedColumns[table.Name], column.Name)
		}
		if len(columns) == 0 {
			report.DroppedTables = append(report.DroppedTables, table.Name)
			continue
		}
		table.Columns = columns
		kept = append(kept, table)
	}

	surviving := make(map[string]map[string]bool, len(kept))
	for _, table := range kept {
		cols := make(map[string]bool, len(table.Columns))
		for _, column := range table.Columns {
			cols[column.Name] = true
		}
		surviving[table.Name] = cols
	}
	for i := range kept {
		local := surviving[kept[i].Name]
		kept[i].ForeignKeys = slices.DeleteFunc(slices.Clone(kept[i].ForeignKeys), func(fk introspection.ForeignKey) bool {
			return !local[fk.ColumnName] || !surviving[fk.ReferencedTable][fk.ReferencedColumn]
		})
	}

	if len(kept) == 0 {
		kept = nil
	}
	schema.Tables = kept
	if len(report.DroppedColumns) == 0 {
		report.DroppedColumns = nil
	}
	return report
}

func tableAllowed(table string, cfg Config) bool {
	if matchesTable(table, cfg.DenyTables) {
		return false
	}
	return len(cfg.AllowTables) == 0 || matchesTable(table, cfg.AllowTables)
}

func columnAllowed(table, column string, cfg Config) bool {
	if matchesAny(column, patternsFor(table, cfg.DenyColumns)) {
		return false
	}
	allow := patternsFor(table, cfg.AllowColumns)
	return len(allow) == 0 || matchesAny(column, allow)
}

// patternsFor collects the column patterns of every table key matching table.
func patternsFor(table string, byTable map[string][]string) []string {
	var out []string
	for key, columns := range byTable {
		if key == "*" || matchesTable(table, []string{key}) {
			out = append(out, columns...)
		}
	}
	return out
}

func matchesTable(table string, patterns []string) bool {
	return matchesAny(table, patterns) || matchesAny(naming.EntityType(table), patterns)
}

func matchesAny(value string, patterns []string) bool {
	value = strings.ToLower(value)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if ok, err := path.Match(strings.ToLower(pattern), value); err == nil && ok {
			return true
		}
	}
	return false
}
