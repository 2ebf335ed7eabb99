// Package mapping associates source columns with destination struct fields.
//
// Destination types are described once by a Fields registry built with
// reflection: every exported field, its coercion kind, and an optional
// column-name override taken from the `filerift` struct tag:
//
//	type Customer struct {
//		ID        int        `filerift:"customer_id"`
//		FirstName string
//		Email     *string
//		Internal  string     `filerift:"-"`
//	}
//
// Three maps resolve columns against those fields: NameMap (explicit column
// names), OrdinalMap (explicit column indexes) and AutoMap (heuristic name
// matching with memoization).
//
// Maps are not safe for concurrent use. AutoMap mutates itself while
// resolving, so one map must not back two readers iterating at the same time.
package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/JonMunkholm/filerift/internal/coerce"
)

// TagName is the struct tag consulted for column-name overrides.
const TagName = "filerift"

var (
	ErrNotStruct         = errors.New("mapping: destination is not a struct")
	ErrUnknownField      = errors.New("mapping: unknown field")
	ErrNotRegistered     = errors.New("mapping: no mapping registered for type")
	ErrAlreadyRegistered = errors.New("mapping: mapping already registered for type")
	ErrNegativeOrdinal   = errors.New("mapping: negative ordinal")
)

// Field is one assignable destination field.
type Field struct {
	Name     string       // Go field name
	Column   string       // override from the struct tag, "" when absent
	Type     reflect.Type // declared type
	Kind     coerce.Kind  // coercion target, KindUnsupported if none fits
	Nullable bool         // pointer field; blank cells become nil

	index []int
}

// Set converts cell and stores it in the field of dst.
func (f Field) Set(dst reflect.Value, cell *string, layouts []string) error {
	if err := coerce.Assign(dst.FieldByIndex(f.index), cell, layouts); err != nil {
		return fmt.Errorf("field %s: %w", f.Name, err)
	}
	return nil
}

// Fields describes the exported fields of one struct type.
type Fields struct {
	typ    reflect.Type
	list   []Field
	byName map[string]int
}

var fieldCache sync.Map // reflect.Type -> *Fields

// FieldsOf returns the field registry for T, building it on first use.
func FieldsOf[T any]() (*Fields, error) {
	return fieldsFor(reflect.TypeFor[T]())
}

func fieldsFor(t reflect.Type) (*Fields, error) {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(*Fields), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotStruct, t)
	}

	fs := &Fields{typ: t, byName: make(map[string]int)}
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || sf.Anonymous || throughPointer(t, sf.Index) {
			continue
		}
		tag := sf.Tag.Get(TagName)
		if tag == "-" {
			continue
		}
		kind, nullable := coerce.KindOf(sf.Type)
		fs.byName[sf.Name] = len(fs.list)
		fs.list = append(fs.list, Field{
			Name:     sf.Name,
			Column:   tag,
			Type:     sf.Type,
			Kind:     kind,
			Nullable: nullable,
			index:    sf.Index,
		})
	}

	actual, _ := fieldCache.LoadOrStore(t, fs)
	return actual.(*Fields), nil
}

// throughPointer reports whether a promoted field is reached through an
// embedded pointer, which would need allocating before assignment.
func throughPointer(t reflect.Type, index []int) bool {
	for i := 1; i < len(index); i++ {
		if t.FieldByIndex(index[:i]).Type.Kind() == reflect.Pointer {
			return true
		}
	}
	return false
}

// Type returns the described struct type.
func (fs *Fields) Type() reflect.Type { return fs.typ }

// All returns the fields in declaration order.
func (fs *Fields) All() []Field {
	out := make([]Field, len(fs.list))
	copy(out, fs.list)
	return out
}

// Lookup finds a field by its Go name.
func (fs *Fields) Lookup(name string) (Field, bool) {
	i, ok := fs.byName[name]
	if !ok {
		return Field{}, false
	}
	return fs.list[i], true
}

func (fs *Fields) mustLookup(name string) (Field, error) {
	f, ok := fs.Lookup(name)
	if !ok {
		return Field{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, fs.typ.Name(), name)
	}
	return f, nil
}
