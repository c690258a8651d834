// Package sqltype classifies SQL column types and decodes driver values into
// the plain Go values entity records carry.
package sqltype

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the value category of a column.
type Kind int

const (
	// KindString covers text, binary, enum, set and temporal columns.
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindJSON
	// KindBits is a BIT column; the driver returns it big-endian.
	KindBits
)

// Classify maps an INFORMATION_SCHEMA column type to its kind. Both
// COLUMN_TYPE ("tinyint(1) unsigned") and DATA_TYPE ("tinyint") are
// accepted; tinyint(1) is the MySQL spelling of BOOLEAN.
func Classify(columnType string) Kind {
	full := strings.ToLower(strings.TrimSpace(columnType))
	if strings.HasPrefix(full, "tinyint(1)") {
		return KindBool
	}
	base, _, _ := strings.Cut(full, "(")
	base, _, _ = strings.Cut(base, " ")
	switch base {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint", "serial", "year":
		return KindInt
	case "bit":
		return KindBits
	case "float", "double", "real", "decimal", "numeric":
		return KindFloat
	case "bool", "boolean":
		return KindBool
	case "json":
		return KindJSON
	default:
		return KindString
	}
}

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindJSON:
		return "json"
	case KindBits:
		return "bits"
	default:
		return "string"
	}
}

// Decode converts a scanned driver value. The text protocol returns every
// column as []byte; the binary protocol returns int64, float64 and
// time.Time. NULL stays nil.
func (k Kind) Decode(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []byte:
		return k.decodeBytes(v)
	case string:
		return k.decodeBytes([]byte(v))
	case int64:
		switch k {
		case KindBool:
			return v != 0, nil
		case KindFloat:
			return float64(v), nil
		}
		return v, nil
	case float32:
		return float64(v), nil
	case bool:
		if k == KindInt {
			if v {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return v, nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	default:
		return v, nil
	}
}

func (k Kind) decodeBytes(b []byte) (any, error) {
	s := string(b)
	switch k {
	case KindInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u, nil
		}
		return nil, fmt.Errorf("invalid integer %q", s)
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", s)
		}
		return f, nil
	case KindBool:
		switch strings.ToLower(s) {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, fmt.Errorf("invalid boolean %q", s)
	case KindBits:
		if len(b) > 8 {
			return nil, fmt.Errorf("bit value of %d bytes exceeds 64 bits", len(b))
		}
		var buf [8]byte
		copy(buf[8-len(b):], b)
		return int64(binary.BigEndian.Uint64(buf[:])), nil
	case KindJSON:
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return out, nil
	default:
		return s, nil
	}
}
