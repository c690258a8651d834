package sqlstore

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"model-graphql/internal/sqlutil"
	"model-graphql/internal/store"
)

var matchNothing = sq.Expr("1=0")

// whereClause translates a filter into squirrel conditions on tm.
// Attribute names are checked against the mapping; values only ever reach
// the statement as bound arguments.
func whereClause(tm *tableModel, filter store.Filter) (sq.And, error) {
	conds := make(sq.And, 0, len(filter))
	for _, p := range filter {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		b, err := tm.binding(p.Attribute)
		if err != nil {
			return nil, err
		}
		op, _ := store.NormalizeOperator(p.Operator)
		value := sqlValue(p.Value)
		if b.attr.IsRelation() && value == false {
			// false stands for an empty relation
			value = nil
		}

		var cond sq.Sqlizer
		if b.attr.Kind == store.OneToMany {
			cond, err = relationCondition(tm, b, op, value, p.Value)
		} else {
			cond, err = columnCondition(sqlutil.QualifiedColumn(tm.table, b.column), op, value, p.Value)
		}
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

func columnCondition(col, op string, value, raw any) (sq.Sqlizer, error) {
	switch op {
	case store.OpEq:
		return sq.Eq{col: value}, nil
	case store.OpNotEq, store.OpNotEqAlt:
		if value == nil {
			return sq.NotEq{col: nil}, nil
		}
		return sq.Or{sq.NotEq{col: value}, sq.Eq{col: nil}}, nil
	case store.OpLt, store.OpLte, store.OpGt, store.OpGte:
		if value == nil {
			return matchNothing, nil
		}
		switch op {
		case store.OpLt:
			return sq.Lt{col: value}, nil
		case store.OpLte:
			return sq.LtOrEq{col: value}, nil
		case store.OpGt:
			return sq.Gt{col: value}, nil
		default:
			return sq.GtOrEq{col: value}, nil
		}
	case store.OpIn:
		return sq.Eq{col: listValue(raw)}, nil
	case store.OpNotIn:
		return sq.Or{sq.NotEq{col: listValue(raw)}, sq.Eq{col: nil}}, nil
	}

	text, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: operator %q needs a string value", store.ErrInvalidFilter, op)
	}
	switch op {
	case store.OpLike:
		return sq.Like{col: sqlutil.ContainsPattern(text)}, nil
	case store.OpNotLike:
		return sq.Or{sq.NotLike{col: sqlutil.ContainsPattern(text)}, sq.Eq{col: nil}}, nil
	case store.OpILike:
		return sq.Expr("LOWER("+col+") LIKE LOWER(?)", sqlutil.ContainsPattern(text)), nil
	case store.OpNotILike:
		return sq.Or{sq.Expr("LOWER("+col+") NOT LIKE LOWER(?)", sqlutil.ContainsPattern(text)), sq.Eq{col: nil}}, nil
	case store.OpRawLike:
		return sq.Like{col: text}, nil
	case store.OpRawILike:
		return sq.Expr("LOWER("+col+") LIKE LOWER(?)", text), nil
	}
	return nil, fmt.Errorf("%w: %q", store.ErrUnsupportedOperator, op)
}

// relationCondition matches a one-to-many attribute when any related row
// satisfies the comparison. Comparing with nil tests for emptiness.
func relationCondition(tm *tableModel, b *binding, op string, value, raw any) (sq.Sqlizer, error) {
	related := sq.Select("1").
		From(sqlutil.QuoteIdentifier(b.remoteTable)).
		Where(sqlutil.QualifiedColumn(b.remoteTable, b.remoteFK) + " = " + sqlutil.QualifiedColumn(tm.table, tm.pk))
	remotePK := sqlutil.QualifiedColumn(b.remoteTable, b.remotePK)

	exists := true
	switch op {
	case store.OpEq, store.OpNotEq, store.OpNotEqAlt:
		if value != nil {
			related = related.Where(sq.Eq{remotePK: value})
		}
		exists = op == store.OpEq
		if value == nil {
			exists = !exists
		}
	case store.OpIn, store.OpNotIn:
		related = related.Where(sq.Eq{remotePK: listValue(raw)})
		exists = op == store.OpIn
	default:
		return matchNothing, nil
	}

	query, args, err := related.ToSql()
	if err != nil {
		return nil, err
	}
	if exists {
		return sq.Expr("EXISTS ("+query+")", args...), nil
	}
	return sq.Expr("NOT EXISTS ("+query+")", args...), nil
}

// sqlValue maps store ids to plain integers for the driver.
func sqlValue(v any) any {
	if id, ok := v.(store.ID); ok {
		return int64(id)
	}
	return v
}

func listValue(raw any) []any {
	list, _ := store.AsList(raw)
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = sqlValue(v)
	}
	return out
}
