package sqlstore

import (
	"fmt"
	"log/slog"

	"model-graphql/internal/introspection"
	"model-graphql/internal/naming"
	"model-graphql/internal/sqltype"
	"model-graphql/internal/store"
)

// binding ties an attribute to the SQL that backs it.
type binding struct {
	attr *store.Attribute
	// column is the local column of scalar and many-to-one attributes.
	column string
	kind   sqltype.Kind
	// remote* describe the table holding the foreign key of a one-to-many.
	remoteTable string
	remoteFK    string
	remotePK    string
}

// tableModel is one entity type backed by one table.
type tableModel struct {
	entityType string
	table      string
	pk         string
	bindings   map[string]*binding
}

// Mapping is an immutable entity view of an introspected database.
type Mapping struct {
	schema *store.Schema
	tables map[string]*tableModel
}

// Schema returns the entity schema of the mapping.
func (m *Mapping) Schema() *store.Schema {
	return m.schema
}

func (m *Mapping) table(entityType string) (*tableModel, error) {
	t, ok := m.tables[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownEntityType, entityType)
	}
	return t, nil
}

func (t *tableModel) binding(name string) (*binding, error) {
	b, ok := t.bindings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", store.ErrUnknownAttribute, t.entityType, name)
	}
	return b, nil
}

// BuildMapping derives entity types from tables. Tables without a single
// integer primary key are skipped. Single column foreign keys to another
// entity's primary key become many-to-one attributes on the referencing
// table and one-to-many attributes on the referenced one.
func BuildMapping(dbSchema *introspection.Schema, namer *naming.Namer, logger *slog.Logger) *Mapping {
	if namer == nil {
		namer = naming.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	namer.Reset()

	mapping := &Mapping{tables: make(map[string]*tableModel)}
	if dbSchema == nil {
		mapping.schema = store.NewSchema()
		return mapping
	}

	byTable := make(map[string]*tableModel, len(dbSchema.Tables))
	for _, table := range dbSchema.Tables {
		pk, ok := introspection.IntegerPrimaryKey(table)
		if !ok {
			logger.Debug("table skipped: no single integer primary key", slog.String("table", table.Name))
			continue
		}
		entityType := naming.EntityType(table.Name)
		if _, exists := mapping.tables[entityType]; exists {
			logger.Warn("table skipped: entity type already mapped",
				slog.String("table", table.Name),
				slog.String("entity_type", entityType),
			)
			continue
		}
		namer.RegisterType(entityType)
		tm := &tableModel{
			entityType: entityType,
			table:      table.Name,
			pk:         pk.Name,
			bindings:   make(map[string]*binding, len(table.Columns)),
		}
		namer.RegisterAttribute(entityType, store.IDAttribute)
		tm.bindings[store.IDAttribute] = &binding{
			attr:   &store.Attribute{Name: store.IDAttribute},
			column: pk.Name,
			kind:   sqltype.KindInt,
		}
		mapping.tables[entityType] = tm
		byTable[table.Name] = tm
	}

	// Columns first so relation names yield to them on collision.
	for _, table := range dbSchema.Tables {
		tm, ok := byTable[table.Name]
		if !ok {
			continue
		}
		for _, col := range table.Columns {
			if col.Name == tm.pk {
				continue
			}
			name := namer.RegisterAttribute(tm.entityType, col.Name)
			tm.bindings[name] = &binding{
				attr:   &store.Attribute{Name: name},
				column: col.Name,
				kind:   sqltype.Classify(columnType(col)),
			}
		}
	}

	type incoming struct {
		source *tableModel
		column string
		attr   string
	}
	var relations []incoming
	for _, table := range dbSchema.Tables {
		tm, ok := byTable[table.Name]
		if !ok {
			continue
		}
		for _, fk := range introspection.ForeignKeyConstraints(table) {
			if !fk.IsSingleColumn() {
				continue
			}
			target, ok := byTable[fk.ReferencedTable]
			if !ok || fk.ReferencedColumns[0] != target.pk {
				continue
			}
			b := tm.bindingForColumn(fk.ColumnNames[0])
			if b == nil || b.attr.IsRelation() {
				continue
			}
			b.attr.Kind = store.ManyToOne
			b.attr.Target = target.entityType
			relations = append(relations, incoming{source: tm, column: b.column, attr: b.attr.Name})
		}
	}

	// fkCount counts foreign keys per (source, target) pair for naming.
	fkCount := make(map[[2]string]int)
	for _, rel := range relations {
		target := mapping.tables[rel.source.bindings[rel.attr].attr.Target]
		fkCount[[2]string{rel.source.table, target.table}]++
	}
	for _, rel := range relations {
		target := mapping.tables[rel.source.bindings[rel.attr].attr.Target]
		onlyFK := fkCount[[2]string{rel.source.table, target.table}] == 1
		name := namer.OneToManyAttributeName(rel.source.table, rel.column, onlyFK)
		name = namer.RegisterRelationAttribute(target.entityType, name, rel.source.table+"."+rel.column)
		target.bindings[name] = &binding{
			attr: &store.Attribute{
				Name:    name,
				Kind:    store.OneToMany,
				Target:  rel.source.entityType,
				Inverse: rel.attr,
			},
			remoteTable: rel.source.table,
			remoteFK:    rel.column,
			remotePK:    rel.source.pk,
		}
	}

	models := make([]*store.Model, 0, len(mapping.tables))
	for _, tm := range mapping.tables {
		attrs := make([]*store.Attribute, 0, len(tm.bindings))
		for _, b := range tm.bindings {
			attrs = append(attrs, b.attr)
		}
		models = append(models, store.NewModel(tm.entityType, attrs...))
	}
	mapping.schema = store.NewSchema(models...)
	return mapping
}

func columnType(col introspection.Column) string {
	if col.ColumnType != "" {
		return col.ColumnType
	}
	return col.DataType
}

func (t *tableModel) bindingForColumn(column string) *binding {
	for _, b := range t.bindings {
		if b.column == column && b.attr.Name != store.IDAttribute {
			return b
		}
	}
	return nil
}
