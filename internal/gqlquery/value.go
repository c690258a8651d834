package gqlquery

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/graphql-go/graphql/language/ast"
)

// DecodeValue converts an argument value node into a native value.
//
// Variables resolve against vars; an absent variable decodes to nil. Numeric
// literals are parsed from their text into int64 or float64. Object values and
// unknown node kinds fail with *UnsupportedValueError.
func DecodeValue(node ast.Value, vars map[string]any) (any, error) {
	switch v := node.(type) {
	case *ast.Variable:
		if v.Name == nil {
			return nil, nil
		}
		return vars[v.Name.Value], nil
	case *ast.ListValue:
		out := make([]any, 0, len(v.Values))
		for _, item := range v.Values {
			decoded, err := DecodeValue(item, vars)
			if err != nil {
				return nil, err
			}
			out = append(out, decoded)
		}
		return out, nil
	case *ast.IntValue:
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse int literal %q: %w", v.Value, err)
		}
		return n, nil
	case *ast.FloatValue:
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("parse float literal %q: %w", v.Value, err)
		}
		return f, nil
	case *ast.StringValue:
		return v.Value, nil
	case *ast.BooleanValue:
		return v.Value, nil
	case *ast.EnumValue:
		return v.Value, nil
	case nil:
		return nil, &UnsupportedValueError{Kind: "<nil>"}
	default:
		kind := fmt.Sprintf("%T", node)
		if k := node.GetKind(); k != "" {
			kind = k
		}
		return nil, &UnsupportedValueError{Kind: kind}
	}
}

// truthy follows the usual dynamic-language rules: nil, false, zero numbers,
// empty strings and empty collections are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int64:
		return t != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Bool:
		return rv.Bool()
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
