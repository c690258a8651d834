package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Predicate is one (attribute, operator, value) triple of a filter.
type Predicate struct {
	Attribute string
	Operator  string
	Value     any
}

// Filter is an ordered list of predicates combined by logical AND.
// An empty filter matches every record.
type Filter []Predicate

// Supported comparison operators.
const (
	OpEq       = "="
	OpNotEq    = "!="
	OpNotEqAlt = "<>"
	OpLt       = "<"
	OpLte      = "<="
	OpGt       = ">"
	OpGte      = ">="
	OpIn       = "in"
	OpNotIn    = "not in"
	OpLike     = "like"
	OpNotLike  = "not like"
	OpILike    = "ilike"
	OpNotILike = "not ilike"
	OpRawLike  = "=like"
	OpRawILike = "=ilike"
)

var operators = map[string]struct{}{
	OpEq: {}, OpNotEq: {}, OpNotEqAlt: {}, OpLt: {}, OpLte: {}, OpGt: {}, OpGte: {},
	OpIn: {}, OpNotIn: {}, OpLike: {}, OpNotLike: {}, OpILike: {}, OpNotILike: {},
	OpRawLike: {}, OpRawILike: {},
}

// NormalizeOperator lower-cases op, collapses inner whitespace and reports
// whether the result is a supported operator.
func NormalizeOperator(op string) (string, bool) {
	op = strings.Join(strings.Fields(strings.ToLower(op)), " ")
	_, ok := operators[op]
	return op, ok
}

// And concatenates filters in order.
func And(filters ...Filter) Filter {
	n := 0
	for _, f := range filters {
		n += len(f)
	}
	out := make(Filter, 0, n)
	for _, f := range filters {
		out = append(out, f...)
	}
	return out
}

// Triple returns the predicate in its list form.
func (p Predicate) Triple() []any {
	return []any{p.Attribute, p.Operator, p.Value}
}

// MarshalJSON encodes the predicate as a three element array.
func (p Predicate) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Triple())
}

// Validate checks the operator and the value shape the operator needs.
func (p Predicate) Validate() error {
	if p.Attribute == "" {
		return fmt.Errorf("%w: empty attribute", ErrInvalidFilter)
	}
	op, ok := NormalizeOperator(p.Operator)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedOperator, p.Operator)
	}
	if op == OpIn || op == OpNotIn {
		if _, ok := AsList(p.Value); !ok {
			return fmt.Errorf("%w: operator %q on %q needs a list value", ErrInvalidFilter, op, p.Attribute)
		}
	}
	return nil
}

// ParseFilter converts a decoded filter literal into a Filter.
// Accepted shapes are Filter, []Predicate, and a list of three element lists.
// The explicit "&" connective is accepted and ignored; other connectives are
// rejected since filters are conjunctions.
func ParseFilter(raw any) (Filter, error) {
	switch v := raw.(type) {
	case nil:
		return Filter{}, nil
	case Filter:
		return v, validateAll(v)
	case []Predicate:
		return Filter(v), validateAll(v)
	}

	items, ok := AsList(raw)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list of predicates, got %T", ErrInvalidFilter, raw)
	}
	out := make(Filter, 0, len(items))
	for i, item := range items {
		if s, ok := item.(string); ok {
			if s == "&" {
				continue
			}
			return nil, fmt.Errorf("%w: connective %q at position %d is not supported", ErrInvalidFilter, s, i)
		}
		triple, ok := AsList(item)
		if !ok || len(triple) != 3 {
			return nil, fmt.Errorf("%w: position %d is not an (attribute, operator, value) triple", ErrInvalidFilter, i)
		}
		attr, ok := triple[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: position %d has a non-string attribute", ErrInvalidFilter, i)
		}
		op, ok := triple[1].(string)
		if !ok {
			return nil, fmt.Errorf("%w: position %d has a non-string operator", ErrInvalidFilter, i)
		}
		p := Predicate{Attribute: attr, Operator: op, Value: triple[2]}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func validateAll(f []Predicate) error {
	for _, p := range f {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
