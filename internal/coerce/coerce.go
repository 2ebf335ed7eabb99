package coerce

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	ErrUnsupportedKind = errors.New("coerce: unsupported destination type")
	ErrTooManyChars    = errors.New("coerce: more than one character")
	ErrInvalidDecimal  = errors.New("coerce: invalid decimal")
	ErrNoTimeLayout    = errors.New("coerce: no layout matched")
)

// Error describes a cell that could not be converted.
type Error struct {
	Kind  Kind
	Value string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("coerce %q to %s: %v", e.Value, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// numericPattern accepts integers, decimals and scientific notation.
var numericPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// DefaultTimeLayouts are tried in order when no explicit layouts are given.
var DefaultTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006",
	"01/02/2006",
	"1-2-2006",
	"01-02-2006",
	"1.2.2006",
	"01.02.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"20060102",
}

// IsBlank reports whether a cell is null, empty or white space only.
func IsBlank(cell *string) bool {
	return cell == nil || strings.TrimSpace(*cell) == ""
}

// Parse converts a non-blank string. layouts restricts KindTime to an exact
// match against one of them; when empty DefaultTimeLayouts is used.
// Surrounding white space is ignored except for string and char kinds.
func Parse(k Kind, s string, layouts []string) (any, error) {
	in := s
	if k != KindString && k != KindChar {
		in = strings.TrimSpace(s)
	}
	v, err := parse(k, in, layouts)
	if err != nil {
		return nil, &Error{Kind: k, Value: s, Err: err}
	}
	return v, nil
}

func parse(k Kind, s string, layouts []string) (any, error) {
	switch k {
	case KindString:
		return s, nil
	case KindInt:
		n, err := strconv.ParseInt(s, 10, strconv.IntSize)
		return int(n), err
	case KindInt16:
		n, err := strconv.ParseInt(s, 10, 16)
		return int16(n), err
	case KindInt32:
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	case KindInt64:
		return strconv.ParseInt(s, 10, 64)
	case KindByte:
		n, err := strconv.ParseUint(s, 10, 8)
		return uint8(n), err
	case KindBool:
		return parseBool(s)
	case KindFloat32:
		f, err := strconv.ParseFloat(s, 32)
		return float32(f), err
	case KindFloat64:
		return strconv.ParseFloat(s, 64)
	case KindDecimal:
		return parseDecimal(s)
	case KindUUID:
		return uuid.Parse(s)
	case KindTime:
		return parseTime(s, layouts)
	case KindChar:
		return parseChar(s)
	}
	return nil, ErrUnsupportedKind
}

func parseBool(s string) (bool, error) {
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	switch strings.ToLower(s) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

func parseDecimal(s string) (pgtype.Numeric, error) {
	if !numericPattern.MatchString(s) {
		return pgtype.Numeric{}, ErrInvalidDecimal
	}
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("%w: %v", ErrInvalidDecimal, err)
	}
	return n, nil
}

func parseTime(s string, layouts []string) (time.Time, error) {
	if len(layouts) == 0 {
		layouts = DefaultTimeLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrNoTimeLayout
}

func parseChar(s string) (Char, error) {
	switch utf8.RuneCountInString(s) {
	case 0:
		return 0, nil
	case 1:
		r, _ := utf8.DecodeRuneInString(s)
		return Char(r), nil
	}
	return 0, ErrTooManyChars
}

// Value converts a cell for a destination of kind k. Blank cells yield nil.
func Value(k Kind, cell *string, layouts []string) (any, error) {
	if k == KindUnsupported {
		return nil, ErrUnsupportedKind
	}
	if IsBlank(cell) {
		return nil, nil
	}
	return Parse(k, *cell, layouts)
}

// Assign converts cell and stores it in dst, which must be settable and of a
// type KindOf accepts. A blank cell sets a pointer destination to nil and any
// other destination to its zero value.
func Assign(dst reflect.Value, cell *string, layouts []string) error {
	kind, nullable := KindOf(dst.Type())
	if kind == KindUnsupported {
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, dst.Type())
	}

	if IsBlank(cell) {
		dst.SetZero()
		return nil
	}

	v, err := Parse(kind, *cell, layouts)
	if err != nil {
		return err
	}

	target := dst
	if nullable {
		target = reflect.New(dst.Type().Elem()).Elem()
	}
	setValue(target, v)
	if nullable {
		dst.Set(target.Addr())
	}
	return nil
}

// setValue stores a parsed value, converting to named types such as
// `type Status string`.
func setValue(dst reflect.Value, v any) {
	rv := reflect.ValueOf(v)
	if rv.Type() != dst.Type() {
		rv = rv.Convert(dst.Type())
	}
	dst.Set(rv)
}
