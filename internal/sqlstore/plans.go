package sqlstore

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"model-graphql/internal/sqlutil"
	"model-graphql/internal/store"
)

// SQLQuery is a statement with its bound arguments.
type SQLQuery struct {
	SQL  string
	Args []any
}

// mysqlNoLimit is the documented "all remaining rows" LIMIT for OFFSET
// without a limit.
const mysqlNoLimit = ^uint64(0)

// planSearch builds the id query of a search. Results are ordered by the
// requested terms and then by primary key so pagination is stable.
func planSearch(tm *tableModel, filter store.Filter, opts store.Options) (SQLQuery, error) {
	pk := sqlutil.QualifiedColumn(tm.table, tm.pk)
	builder := sq.Select(pk).From(sqlutil.QuoteIdentifier(tm.table))

	conds, err := whereClause(tm, filter)
	if err != nil {
		return SQLQuery{}, err
	}
	if len(conds) > 0 {
		builder = builder.Where(conds)
	}

	terms, err := store.ParseOrder(opts.Order)
	if err != nil {
		return SQLQuery{}, err
	}
	orderedByPK := false
	for _, term := range terms {
		b, ok := tm.bindings[term.Attribute]
		if !ok || b.attr.Kind == store.OneToMany {
			return SQLQuery{}, fmt.Errorf("%w: cannot order by %q", store.ErrInvalidOrder, term.Attribute)
		}
		clause := sqlutil.QualifiedColumn(tm.table, b.column)
		if term.Desc {
			clause += " DESC"
		}
		builder = builder.OrderBy(clause)
		if b.column == tm.pk {
			orderedByPK = true
			break
		}
	}
	if !orderedByPK {
		builder = builder.OrderBy(pk)
	}

	switch {
	case opts.Limit > 0:
		builder = builder.Limit(uint64(opts.Limit))
	case opts.Offset > 0:
		builder = builder.Limit(mysqlNoLimit)
	}
	if opts.Offset > 0 {
		builder = builder.Offset(uint64(opts.Offset))
	}

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// planRead selects the primary key followed by columns for the given ids.
func planRead(tm *tableModel, columns []string, ids []store.ID) (SQLQuery, error) {
	selected := make([]string, 0, len(columns)+1)
	selected = append(selected, sqlutil.QualifiedColumn(tm.table, tm.pk))
	for _, col := range columns {
		selected = append(selected, sqlutil.QualifiedColumn(tm.table, col))
	}

	query, args, err := sq.Select(selected...).
		From(sqlutil.QuoteIdentifier(tm.table)).
		Where(sq.Eq{sqlutil.QualifiedColumn(tm.table, tm.pk): idArgs(ids)}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// planOneToMany lists (parent id, child id) pairs of a one-to-many
// attribute, children ordered by id.
func planOneToMany(b *binding, ids []store.ID) (SQLQuery, error) {
	fk := sqlutil.QualifiedColumn(b.remoteTable, b.remoteFK)
	pk := sqlutil.QualifiedColumn(b.remoteTable, b.remotePK)

	query, args, err := sq.Select(fk, pk).
		From(sqlutil.QuoteIdentifier(b.remoteTable)).
		Where(sq.Eq{fk: idArgs(ids)}).
		OrderBy(pk).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

func idArgs(ids []store.ID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}
	return args
}
