// Package coerce converts raw text cells into typed values.
//
// Every supported destination type is one Kind. Parse selects the
// conversion for a Kind with a switch; there is no lookup table to register
// into. Blank cells never reach Parse: Value and Assign turn them into nil
// (for nullable destinations) or the zero value.
package coerce

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Kind is a supported destination type.
type Kind int

const (
	KindUnsupported Kind = iota
	KindString
	KindInt
	KindInt16
	KindInt32
	KindInt64
	KindByte
	KindBool
	KindFloat32
	KindFloat64
	KindDecimal
	KindUUID
	KindTime
	KindChar
)

var kindNames = [...]string{
	KindUnsupported: "unsupported",
	KindString:      "string",
	KindInt:         "int",
	KindInt16:       "int16",
	KindInt32:       "int32",
	KindInt64:       "int64",
	KindByte:        "byte",
	KindBool:        "bool",
	KindFloat32:     "float32",
	KindFloat64:     "float64",
	KindDecimal:     "decimal",
	KindUUID:        "uuid",
	KindTime:        "time",
	KindChar:        "char",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Char is a single-character destination. A blank cell yields 0.
type Char rune

var (
	typeNumeric = reflect.TypeFor[pgtype.Numeric]()
	typeUUID    = reflect.TypeFor[uuid.UUID]()
	typeTime    = reflect.TypeFor[time.Time]()
	typeChar    = reflect.TypeFor[Char]()
)

// KindOf classifies a Go type. A pointer type is nullable and classified by
// its element type.
func KindOf(t reflect.Type) (kind Kind, nullable bool) {
	if t.Kind() == reflect.Pointer {
		nullable = true
		t = t.Elem()
	}

	switch t {
	case typeNumeric:
		return KindDecimal, nullable
	case typeUUID:
		return KindUUID, nullable
	case typeTime:
		return KindTime, nullable
	case typeChar:
		return KindChar, nullable
	}

	switch t.Kind() {
	case reflect.String:
		return KindString, nullable
	case reflect.Int:
		return KindInt, nullable
	case reflect.Int16:
		return KindInt16, nullable
	case reflect.Int32:
		return KindInt32, nullable
	case reflect.Int64:
		return KindInt64, nullable
	case reflect.Uint8:
		return KindByte, nullable
	case reflect.Bool:
		return KindBool, nullable
	case reflect.Float32:
		return KindFloat32, nullable
	case reflect.Float64:
		return KindFloat64, nullable
	}
	return KindUnsupported, nullable
}

// ParseKind maps a type name, as used in column specs such as "amount:decimal",
// to a Kind. SQL spellings are accepted.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "string", "text", "varchar":
		return KindString, nil
	case "int":
		return KindInt, nil
	case "int16", "smallint", "int2":
		return KindInt16, nil
	case "int32", "integer", "int4":
		return KindInt32, nil
	case "int64", "bigint", "int8":
		return KindInt64, nil
	case "byte", "uint8":
		return KindByte, nil
	case "bool", "boolean":
		return KindBool, nil
	case "float32", "real", "float4":
		return KindFloat32, nil
	case "float64", "double", "float8":
		return KindFloat64, nil
	case "decimal", "numeric":
		return KindDecimal, nil
	case "uuid", "guid":
		return KindUUID, nil
	case "time", "timestamp", "timestamptz", "date", "datetime":
		return KindTime, nil
	case "char", "character":
		return KindChar, nil
	}
	return KindUnsupported, fmt.Errorf("%w: %q", ErrUnsupportedKind, name)
}
