package gqlquery

import (
	"math"
	"strconv"
	"strings"

	"github.com/graphql-go/graphql/language/ast"

	"model-graphql/internal/store"
)

// Recognized argument names.
const (
	ArgOffset = "offset"
	ArgLimit  = "limit"
	ArgOrder  = "order"
	ArgDomain = "domain"
)

// CompileArguments turns a field's arguments into a filter and search options.
//
// offset and limit coerce to non-negative integers and order to a string;
// falsy values leave the option unset. domain supplies a literal filter. Any
// other argument becomes an equality predicate (or "in" for list values)
// appended after the domain in argument order.
func CompileArguments(args []*ast.Argument, vars map[string]any) (store.Filter, store.Options, error) {
	var (
		opts   store.Options
		domain store.Filter
		extra  store.Filter
	)

	for _, arg := range args {
		if arg == nil || arg.Name == nil {
			continue
		}
		name := arg.Name.Value
		value, err := DecodeValue(arg.Value, vars)
		if err != nil {
			return nil, store.Options{}, err
		}

		switch name {
		case ArgOffset, ArgLimit:
			if !truthy(value) {
				continue
			}
			n, err := coerceCount(name, value)
			if err != nil {
				return nil, store.Options{}, err
			}
			if name == ArgOffset {
				opts.Offset = n
			} else {
				opts.Limit = n
			}
		case ArgOrder:
			if !truthy(value) {
				continue
			}
			s, ok := value.(string)
			if !ok {
				return nil, store.Options{}, &InvalidArgumentError{Argument: name, Value: value, Reason: "expected a string"}
			}
			if _, err := store.ParseOrder(s); err != nil {
				return nil, store.Options{}, &InvalidArgumentError{Argument: name, Value: value, Reason: err.Error()}
			}
			opts.Order = s
		case ArgDomain:
			filter, err := store.ParseFilter(value)
			if err != nil {
				return nil, store.Options{}, &InvalidArgumentError{Argument: name, Value: value, Reason: err.Error()}
			}
			domain = filter
		default:
			op := store.OpEq
			if _, ok := store.AsList(value); ok {
				op = store.OpIn
			}
			extra = append(extra, store.Predicate{Attribute: name, Operator: op, Value: value})
		}
	}

	return store.And(domain, extra), opts, nil
}

func coerceCount(name string, value any) (int, error) {
	var n int64
	switch v := value.(type) {
	case int64:
		n = v
	case int:
		n = int64(v)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, &InvalidArgumentError{Argument: name, Value: value, Reason: "expected an integer"}
		}
		n = int64(v)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, &InvalidArgumentError{Argument: name, Value: value, Reason: "expected an integer"}
		}
		n = parsed
	default:
		return 0, &InvalidArgumentError{Argument: name, Value: value, Reason: "expected an integer"}
	}
	if n < 0 {
		return 0, &InvalidArgumentError{Argument: name, Value: value, Reason: "must not be negative"}
	}
	if n > math.MaxInt32 {
		return 0, &InvalidArgumentError{Argument: name, Value: value, Reason: "out of range"}
	}
	return int(n), nil
}
