package sqlstore

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"model-graphql/internal/introspection"
	"model-graphql/internal/naming"
)

func bigint(name string, pk bool) introspection.Column {
	return introspection.Column{Name: name, DataType: "bigint", ColumnType: "bigint(20)", IsPrimaryKey: pk}
}

func varchar(name string) introspection.Column {
	return introspection.Column{Name: name, DataType: "varchar", ColumnType: "varchar(255)", IsNullable: true}
}

// shopSchema is a partner/order database: partners form a hierarchy and
// orders reference partners twice.
func shopSchema() *introspection.Schema {
	return &introspection.Schema{
		Tables: []introspection.Table{
			{
				Name:    "res_partner",
				Columns: []introspection.Column{bigint("id", true), varchar("name"), bigint("parent_id", false)},
				ForeignKeys: []introspection.ForeignKey{
					{ColumnName: "parent_id", ReferencedTable: "res_partner", ReferencedColumn: "id", ConstraintName: "partner_parent_fk", OrdinalPosition: 1},
				},
			},
			{
				Name: "sale_order",
				Columns: []introspection.Column{
					bigint("id", true),
					varchar("name"),
					bigint("partner_id", false),
					bigint("invoice_partner_id", false),
					{Name: "amount", DataType: "decimal", ColumnType: "decimal(10,2)"},
				},
				ForeignKeys: []introspection.ForeignKey{
					{ColumnName: "partner_id", ReferencedTable: "res_partner", ReferencedColumn: "id", ConstraintName: "order_partner_fk", OrdinalPosition: 1},
					{ColumnName: "invoice_partner_id", ReferencedTable: "res_partner", ReferencedColumn: "id", ConstraintName: "order_invoice_partner_fk", OrdinalPosition: 1},
				},
			},
			{
				Name: "tag_rel",
				Columns: []introspection.Column{
					bigint("tag_id", true),
					bigint("partner_id", true),
				},
			},
		},
	}
}

func shopMapping() *Mapping {
	return BuildMapping(shopSchema(), naming.Default(), nil)
}

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := New(Config{Introspection: db, DatabaseName: "shop"})
	require.NoError(t, err)
	s.mapping.Store(shopMapping())
	return s, mock
}
