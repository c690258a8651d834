package schemafilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-graphql/internal/introspection"
)

func TestApply_NilSchema(t *testing.T) {
	assert.True(t, Apply(nil, Config{DenyTables: []string{"*"}}).Empty())
}

func TestApply_AllowsAllByDefault(t *testing.T) {
	schema := &introspection.Schema{
		Tables: []introspection.Table{
			{Name: "res_partner", Columns: []introspection.Column{{Name: "id"}}},
			{Name: "sale_order", Columns: []introspection.Column{{Name: "id"}}},
		},
	}

	report := Apply(schema, Config{})

	assert.Len(t, schema.Tables, 2)
	assert.True(t, report.Empty())
}

func TestApply_EntityTypePatterns(t *testing.T) {
	schema := &introspection.Schema{
		Tables: []introspection.Table{
			{Name: "res_partner", Columns: []introspection.Column{{Name: "id", IsPrimaryKey: true}, {Name: "vat"}}},
			{Name: "sale_order", Columns: []introspection.Column{{Name: "id", IsPrimaryKey: true}}},
			{Name: "sale_order_line", Columns: []introspection.Column{{Name: "id", IsPrimaryKey: true}}},
		},
	}

	report := Apply(schema, Config{
		AllowTables: []string{"res.*", "sale.order"},
		DenyColumns: map[string][]string{"res.partner": {"vat"}},
	})

	require.Len(t, schema.Tables, 2)
	assert.Equal(t, "res_partner", schema.Tables[0].Name)
	assert.Len(t, schema.Tables[0].Columns, 1)
	assert.Equal(t, "sale_order", schema.Tables[1].Name)
	assert.Equal(t, []string{"sale_order_line"}, report.DroppedTables)
}

func TestApply_TableAndColumnFilters(t *testing.T) {
	schema := &introspection.Schema{
		Tables: []introspection.Table{
			{
				Name: "res_users",
				Columns: []introspection.Column{
					{Name: "id", IsPrimaryKey: true},
					{Name: "login"},
					{Name: "password_hash"},
				},
			},
			{
				Name: "audit_intern",
				Columns: []introspection.Column{
					{Name: "id", IsPrimaryKey: true},
					{Name: "payload"},
				},
			},
		},
	}

	cfg := Config{
		AllowTables:  []string{"*"},
		DenyTables:   []string{"*_INTERN"},
		AllowColumns: map[string][]string{"*": {"*"}},
		DenyColumns:  map[string][]string{"res_users": {"password_*"}},
	}

	report := Apply(schema, cfg)

	assert.Equal(t, []string{"audit_intern"}, report.DroppedTables)
	assert.Equal(t, map[string][]string{"res_users": {"password_hash"}}, report.DroppedColumns)
	require.Len(t, schema.Tables, 1)
	users := schema.Tables[0]
	assert.Equal(t, "res_users", users.Name)
	require.Len(t, users.Columns, 2)
	assert.Equal(t, "id", users.Columns[0].Name)
	assert.Equal(t, "login", users.Columns[1].Name)
}

func TestApply_KeepsPrimaryKeyUnderAllowList(t *testing.T) {
	schema := &introspection.Schema{
		Tables: []introspection.Table{
			{
				Name: "res_partner",
				Columns: []introspection.Column{
					{Name: "id", IsPrimaryKey: true},
					{Name: "name"},
					{Name: "vat"},
				},
			},
		},
	}

	Apply(schema, Config{AllowColumns: map[string][]string{"res_partner": {"name"}}})

	require.Len(t, schema.Tables, 1)
	names := make([]string, 0, len(schema.Tables[0].Columns))
	for _, col := range schema.Tables[0].Columns {
		names = append(names, col.Name)
	}
	assert.Equal(t, []string{"id", "name"}, names)
}

func TestApply_RemovesForeignKeysForFilteredColumns(t *testing.T) {
	newSchema := func() *introspection.Schema {
		return &introspection.Schema{
			Tables: []introspection.Table{
				{
					Name:    "res_partner",
					Columns: []introspection.Column{{Name: "id", IsPrimaryKey: true}},
				},
				{
					Name: "sale_order",
					Columns: []introspection.Column{
						{Name: "id", IsPrimaryKey: true},
						{Name: "partner_id"},
					},
					ForeignKeys: []introspection.ForeignKey{
						{ColumnName: "partner_id", ReferencedTable: "res_partner", ReferencedColumn: "id", ConstraintName: "order_partner_fk"},
					},
				},
			},
		}
	}

	schema := newSchema()
	Apply(schema, Config{DenyColumns: map[string][]string{"sale_order": {"partner_id"}}})
	order, ok := schema.Table("sale_order")
	require.True(t, ok)
	assert.Empty(t, order.ForeignKeys)

	schema = newSchema()
	Apply(schema, Config{DenyTables: []string{"res_partner"}})
	order, ok = schema.Table("sale_order")
	require.True(t, ok)
	assert.Empty(t, order.ForeignKeys)
	assert.Len(t, order.Columns, 2)
}

func TestApply_ScanViews(t *testing.T) {
	newSchema := func() *introspection.Schema {
		return &introspection.Schema{
			Tables: []introspection.Table{
				{Name: "res_users", Columns: []introspection.Column{{Name: "id"}}},
				{Name: "active_users", IsView: true, Columns: []introspection.Column{{Name: "id"}}},
			},
		}
	}

	schema := newSchema()
	Apply(schema, Config{})
	require.Len(t, schema.Tables, 1)
	assert.Equal(t, "res_users", schema.Tables[0].Name)

	schema = newSchema()
	Apply(schema, Config{ScanViewsEnabled: true, AllowTables: []string{"*"}})
	assert.Len(t, schema.Tables, 2)
}

func TestApply_DropsTablesWithoutColumns(t *testing.T) {
	schema := &introspection.Schema{
		Tables: []introspection.Table{
			{Name: "secrets", Columns: []introspection.Column{{Name: "token"}}},
		},
	}

	report := Apply(schema, Config{DenyColumns: map[string][]string{"*": {"token"}}})

	assert.Empty(t, schema.Tables)
	assert.Equal(t, []string{"secrets"}, report.DroppedTables)
	assert.Equal(t, map[string][]string{"secrets": {"token"}}, report.DroppedColumns)
}
