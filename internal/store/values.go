package store

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
)

// AsList returns v as a []any when it is a list of any element type.
func AsList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []ID:
		out := make([]any, len(list))
		for i, id := range list {
			out[i] = id
		}
		return out, true
	case string, []byte, nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// ToID converts an integral value to an ID.
func ToID(v any) (ID, bool) {
	switch n := v.(type) {
	case ID:
		return n, true
	case int:
		return ID(n), true
	case int8:
		return ID(n), true
	case int16:
		return ID(n), true
	case int32:
		return ID(n), true
	case int64:
		return ID(n), true
	case uint:
		return ID(n), true
	case uint8:
		return ID(n), true
	case uint16:
		return ID(n), true
	case uint32:
		return ID(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return ID(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return ID(n), true
	case float32:
		if float64(n) != math.Trunc(float64(n)) {
			return 0, false
		}
		return ID(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return ID(i), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return ID(i), true
	}
	return 0, false
}

// ToIDs converts a list of integral values to IDs.
func ToIDs(v any) ([]ID, bool) {
	if ids, ok := v.([]ID); ok {
		return ids, true
	}
	list, ok := AsList(v)
	if !ok {
		return nil, false
	}
	out := make([]ID, 0, len(list))
	for _, item := range list {
		id, ok := ToID(item)
		if !ok {
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}
