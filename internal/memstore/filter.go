package memstore

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"model-graphql/internal/store"
)

type predicate struct {
	attr    *store.Attribute
	op      string
	value   any
	list    []any
	pattern *regexp.Regexp
}

func (s *Store) compileFilter(m *store.Model, filter store.Filter) ([]predicate, error) {
	preds := make([]predicate, 0, len(filter))
	for _, p := range filter {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		attr, ok := m.Attribute(p.Attribute)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", store.ErrUnknownAttribute, m.Name, p.Attribute)
		}
		op, _ := store.NormalizeOperator(p.Operator)
		cp := predicate{attr: attr, op: op, value: normalize(p.Value)}
		if attr.IsRelation() && cp.value == false {
			// false stands for an empty relation
			cp.value = nil
		}

		switch op {
		case store.OpIn, store.OpNotIn:
			list, _ := store.AsList(p.Value)
			cp.list = make([]any, len(list))
			for i, v := range list {
				cp.list[i] = normalize(v)
			}
		case store.OpLike, store.OpNotLike, store.OpILike, store.OpNotILike, store.OpRawLike, store.OpRawILike:
			text, ok := p.Value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: operator %q needs a string value", store.ErrInvalidFilter, op)
			}
			re, err := likePattern(op, text)
			if err != nil {
				return nil, err
			}
			cp.pattern = re
		}
		preds = append(preds, cp)
	}
	return preds, nil
}

func (s *Store) matches(record store.Record, preds []predicate) bool {
	for _, p := range preds {
		var value any
		if p.attr.Kind == store.OneToMany {
			value = s.inverseIDs(p.attr, record[store.IDAttribute].(store.ID))
		} else {
			value = normalize(record[p.attr.Name])
		}
		if !p.match(value) {
			return false
		}
	}
	return true
}

func (p predicate) match(value any) bool {
	// One-to-many values match when any related id matches.
	if ids, ok := value.([]store.ID); ok {
		return p.matchMany(ids)
	}

	switch p.op {
	case store.OpEq:
		return equal(value, p.value)
	case store.OpNotEq, store.OpNotEqAlt:
		return !equal(value, p.value)
	case store.OpIn:
		return contains(p.list, value)
	case store.OpNotIn:
		return !contains(p.list, value)
	case store.OpLt, store.OpLte, store.OpGt, store.OpGte:
		if value == nil || p.value == nil {
			return false
		}
		c := compareValues(value, p.value)
		switch p.op {
		case store.OpLt:
			return c < 0
		case store.OpLte:
			return c <= 0
		case store.OpGt:
			return c > 0
		default:
			return c >= 0
		}
	case store.OpLike, store.OpILike, store.OpRawLike, store.OpRawILike:
		text, ok := value.(string)
		return ok && p.pattern.MatchString(text)
	case store.OpNotLike, store.OpNotILike:
		text, ok := value.(string)
		return !ok || !p.pattern.MatchString(text)
	}
	return false
}

func (p predicate) matchMany(ids []store.ID) bool {
	someID := func(fn func(v any) bool) bool {
		for _, id := range ids {
			if fn(normalize(id)) {
				return true
			}
		}
		return false
	}
	switch p.op {
	case store.OpEq:
		if p.value == nil {
			return len(ids) == 0
		}
		return someID(func(v any) bool { return equal(v, p.value) })
	case store.OpNotEq, store.OpNotEqAlt:
		if p.value == nil {
			return len(ids) > 0
		}
		return !someID(func(v any) bool { return equal(v, p.value) })
	case store.OpIn:
		return someID(func(v any) bool { return contains(p.list, v) })
	case store.OpNotIn:
		return !someID(func(v any) bool { return contains(p.list, v) })
	}
	return false
}

func likePattern(op, text string) (*regexp.Regexp, error) {
	var expr string
	switch op {
	case store.OpRawLike, store.OpRawILike:
		var b strings.Builder
		for _, r := range text {
			switch r {
			case '%':
				b.WriteString(".*")
			case '_':
				b.WriteString(".")
			default:
				b.WriteString(regexp.QuoteMeta(string(r)))
			}
		}
		expr = "^" + b.String() + "$"
	default:
		expr = regexp.QuoteMeta(text)
	}
	if op == store.OpILike || op == store.OpNotILike || op == store.OpRawILike {
		expr = "(?is)" + expr
	} else {
		expr = "(?s)" + expr
	}
	return regexp.Compile(expr)
}

// normalize maps numbers to float64 and ids to float64 so they compare
// across the types fixtures and GraphQL literals produce.
func normalize(v any) any {
	switch n := v.(type) {
	case store.ID:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	}
	return v
}

func equal(a, b any) bool {
	a, b = normalize(a), normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return compareValues(a, b) == 0
}

func contains(list []any, v any) bool {
	for _, item := range list {
		if equal(item, v) {
			return true
		}
	}
	return false
}

// compareValues orders nil first, then values of the same kind naturally.
// Values of different kinds compare by their printed form.
func compareValues(a, b any) int {
	a, b = normalize(a), normalize(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return cmpOrdered(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpOrdered(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
