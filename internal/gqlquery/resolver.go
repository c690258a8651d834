package gqlquery

import (
	"context"

	"model-graphql/internal/store"
)

// FieldResolver turns the raw value of one attribute into its output value.
type FieldResolver interface {
	ResolveValue(ctx context.Context, st store.Store, raw any) (any, error)
}

type passthrough struct{}

func (passthrough) ResolveValue(_ context.Context, _ store.Store, raw any) (any, error) {
	return raw, nil
}

// Passthrough returns raw values unchanged. Scalars and relations without a
// nested selection use it, so relation identifiers come back unresolved.
var Passthrough FieldResolver = passthrough{}

type selectorKind int

const (
	selectAll selectorKind = iota
	selectOne
	selectMany
)

// Selector chooses the records a RecordResolver starts from.
type Selector struct {
	kind selectorKind
	ids  []store.ID
}

// All selects every record matching the resolver's own filter.
func All() Selector { return Selector{kind: selectAll} }

// One selects a single record; resolving it yields one map or nil.
func One(id store.ID) Selector { return Selector{kind: selectOne, ids: []store.ID{id}} }

// Many selects a list of records; resolving it always yields a list.
func Many(ids ...store.ID) Selector {
	if ids == nil {
		ids = []store.ID{}
	}
	return Selector{kind: selectMany, ids: ids}
}

// Singular reports whether the selector yields a single record.
func (s Selector) Singular() bool { return s.kind == selectOne }

// IDs returns the selected ids; nil for All.
func (s Selector) IDs() []store.ID { return s.ids }

func (s Selector) constraint() store.Filter {
	switch s.kind {
	case selectOne:
		return store.Filter{{Attribute: store.IDAttribute, Operator: store.OpEq, Value: s.ids[0]}}
	case selectMany:
		return store.Filter{{Attribute: store.IDAttribute, Operator: store.OpIn, Value: s.ids}}
	}
	return nil
}

// SelectorFor derives a selector from a raw relation value: a single id
// selects One, a list of ids selects Many. Null relations (nil or false) and
// values that are not ids report false.
func SelectorFor(raw any) (Selector, bool) {
	switch raw.(type) {
	case nil, bool, string:
		return Selector{}, false
	}
	if id, ok := store.ToID(raw); ok {
		return One(id), true
	}
	if ids, ok := store.ToIDs(raw); ok {
		return Many(ids...), true
	}
	return Selector{}, false
}

// AliasedField is one requested occurrence of an attribute.
type AliasedField struct {
	Key      string
	Resolver FieldResolver
}

// RecordResolver resolves a set of records of one entity type into output maps.
type RecordResolver struct {
	EntityType string
	// Attributes lists the attributes to read, in first-requested order.
	Attributes []string
	// Fields holds the alias table of every attribute.
	Fields map[string][]AliasedField
	// Static holds constant output values such as __typename.
	Static  map[string]any
	Filter  store.Filter
	Options store.Options
}

// Resolve searches for the selected records, reads their attributes and fans
// each value out through its alias table.
//
// One returns a single map[string]any, or nil when nothing matched. All and
// Many return a []any of maps. An empty Many returns an empty list without
// calling the store.
func (r *RecordResolver) Resolve(ctx context.Context, st store.Store, sel Selector) (any, error) {
	if sel.kind == selectMany && len(sel.ids) == 0 {
		return []any{}, nil
	}

	filter := store.And(sel.constraint(), r.Filter)
	ids, err := search(ctx, st, r.EntityType, filter, r.Options)
	if err != nil {
		return nil, err
	}

	rows := []any{}
	if len(ids) > 0 {
		records, err := read(ctx, st, r.EntityType, ids, r.Attributes)
		if err != nil {
			return nil, err
		}
		rows = make([]any, 0, len(records))
		for _, record := range records {
			row, err := r.assemble(ctx, st, record)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}

	if sel.Singular() {
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil
	}
	return rows, nil
}

// ResolveValue resolves a raw relation value. Null relations resolve to nil.
func (r *RecordResolver) ResolveValue(ctx context.Context, st store.Store, raw any) (any, error) {
	sel, ok := SelectorFor(raw)
	if !ok {
		return nil, nil
	}
	return r.Resolve(ctx, st, sel)
}

func (r *RecordResolver) assemble(ctx context.Context, st store.Store, record store.Record) (map[string]any, error) {
	row := make(map[string]any, len(r.Attributes)+len(r.Static))
	for key, value := range r.Static {
		row[key] = value
	}
	for _, attr := range r.Attributes {
		raw := record[attr]
		for _, field := range r.Fields[attr] {
			value, err := field.Resolver.ResolveValue(ctx, st, raw)
			if err != nil {
				return nil, err
			}
			row[field.Key] = value
		}
	}
	return row, nil
}
