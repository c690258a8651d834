package introspection

import (
	"fmt"
	"sort"
	"strings"
)

// ForeignKeyConstraint groups per-column KEY_COLUMN_USAGE rows into one constraint.
type ForeignKeyConstraint struct {
	ConstraintName    string
	ReferencedTable   string
	ColumnNames       []string
	ReferencedColumns []string
}

// IsSingleColumn reports whether the constraint spans exactly one column.
func (c ForeignKeyConstraint) IsSingleColumn() bool {
	return len(c.ColumnNames) == 1
}

// ForeignKeyConstraints returns FK constraints for a table with deterministic ordering.
func ForeignKeyConstraints(table Table) []ForeignKeyConstraint {
	if len(table.ForeignKeys) == 0 {
		return nil
	}

	type row struct {
		key   string
		fk    ForeignKey
		index int
	}
	rows := make([]row, 0, len(table.ForeignKeys))
	for i, fk := range table.ForeignKeys {
		key := fk.ConstraintName
		if key == "" {
			key = fmt.Sprintf("__unnamed_%d", i)
		}
		rows = append(rows, row{key: key, fk: fk, index: i})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].key != rows[j].key {
			return rows[i].key < rows[j].key
		}
		if rows[i].fk.OrdinalPosition != rows[j].fk.OrdinalPosition {
			return rows[i].fk.OrdinalPosition < rows[j].fk.OrdinalPosition
		}
		return rows[i].index < rows[j].index
	})

	var result []ForeignKeyConstraint
	lastKey := ""
	for _, item := range rows {
		if len(result) == 0 || item.key != lastKey {
			result = append(result, ForeignKeyConstraint{
				ConstraintName:  item.fk.ConstraintName,
				ReferencedTable: item.fk.ReferencedTable,
			})
			lastKey = item.key
		}
		group := &result[len(result)-1]
		group.ColumnNames = append(group.ColumnNames, item.fk.ColumnName)
		group.ReferencedColumns = append(group.ReferencedColumns, item.fk.ReferencedColumn)
	}
	return result
}

// IntegerPrimaryKey returns the table's primary key column when it is a
// single integer column, the shape required to expose rows as entities.
func IntegerPrimaryKey(table Table) (*Column, bool) {
	var pk *Column
	for i := range table.Columns {
		if !table.Columns[i].IsPrimaryKey {
			continue
		}
		if pk != nil {
			return nil, false
		}
		pk = &table.Columns[i]
	}
	if pk == nil || !IsIntegerType(pk.DataType) {
		return nil, false
	}
	return pk, true
}

// IsIntegerType reports whether a DATA_TYPE value is an integer type.
func IsIntegerType(dataType string) bool {
	switch strings.ToLower(dataType) {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint":
		return true
	default:
		return false
	}
}
