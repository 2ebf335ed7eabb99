package mapping

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Binding ties one cell position to one destination field.
type Binding[T any] struct {
	Column  string // source column name, "" for ordinal bindings
	Ordinal int    // cell index in the row
	Field   Field
}

// Set converts cell into the bound field of dst.
func (b Binding[T]) Set(dst *T, cell *string, layouts []string) error {
	return b.Field.Set(reflect.ValueOf(dst).Elem(), cell, layouts)
}

// Map resolves a destination type's fields against a file's columns.
type Map[T any] interface {
	// Bind returns the active bindings for a file with the given headers.
	// headers is nil for files without a header row.
	Bind(headers []string) ([]Binding[T], error)

	// NeedsHeaders reports whether Bind requires column names.
	NeedsHeaders() bool
}

// keyer normalizes column names for comparison.
type keyer struct {
	fold  bool
	caser cases.Caser
}

func newKeyer(ignoreCase bool) keyer {
	k := keyer{fold: ignoreCase}
	if ignoreCase {
		k.caser = cases.Fold()
	}
	return k
}

func (k keyer) key(s string) string {
	if !k.fold {
		return s
	}
	return k.caser.String(s)
}

// Entry is one explicit column to field association.
type Entry struct {
	Column  string
	Ordinal int
	Field   string
}

type nameEntry struct {
	column string
	key    string
	field  Field
}

// NameMap maps column names to fields.
type NameMap[T any] struct {
	fields  *Fields
	keys    keyer
	entries []nameEntry
}

// NewNameMap returns a map seeded with the struct tag overrides of T.
// ignoreCase folds case when comparing column names.
func NewNameMap[T any](ignoreCase bool) (*NameMap[T], error) {
	fs, err := FieldsOf[T]()
	if err != nil {
		return nil, err
	}
	m := &NameMap[T]{fields: fs, keys: newKeyer(ignoreCase)}
	for _, f := range fs.list {
		if f.Column != "" {
			m.put(f.Column, f)
		}
	}
	return m, nil
}

// Add maps column to the named field. An existing entry for the same column
// or the same field is replaced.
func (m *NameMap[T]) Add(column, field string) error {
	f, err := m.fields.mustLookup(field)
	if err != nil {
		return err
	}
	m.put(column, f)
	return nil
}

func (m *NameMap[T]) put(column string, f Field) {
	key := m.keys.key(column)
	m.entries = slices.DeleteFunc(m.entries, func(e nameEntry) bool {
		return e.key == key || e.field.Name == f.Name
	})
	m.entries = append(m.entries, nameEntry{column: column, key: key, field: f})
}

// Resolve returns the field mapped to column.
func (m *NameMap[T]) Resolve(column string) (Field, bool) {
	key := m.keys.key(column)
	for _, e := range m.entries {
		if e.key == key {
			return e.field, true
		}
	}
	return Field{}, false
}

// Entries returns the current associations in insertion order.
func (m *NameMap[T]) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	for i, e := range m.entries {
		out[i] = Entry{Column: e.column, Ordinal: -1, Field: e.field.Name}
	}
	return out
}

// Bind looks each entry's column up in headers. Entries whose column is not
// in the file are skipped and their fields keep the zero value.
func (m *NameMap[T]) Bind(headers []string) ([]Binding[T], error) {
	if headers == nil {
		return nil, fmt.Errorf("mapping: name map for %s needs headers", m.fields.typ)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		k := m.keys.key(h)
		if _, dup := index[k]; !dup {
			index[k] = i
		}
	}

	bindings := make([]Binding[T], 0, len(m.entries))
	for _, e := range m.entries {
		i, ok := index[e.key]
		if !ok {
			continue
		}
		bindings = append(bindings, Binding[T]{Column: headers[i], Ordinal: i, Field: e.field})
	}
	return bindings, nil
}

func (m *NameMap[T]) NeedsHeaders() bool { return true }

// OrdinalMap maps column indexes to fields, for files without headers.
type OrdinalMap[T any] struct {
	fields  *Fields
	entries []Binding[T]
}

// NewOrdinalMap returns an empty ordinal map for T.
func NewOrdinalMap[T any]() (*OrdinalMap[T], error) {
	fs, err := FieldsOf[T]()
	if err != nil {
		return nil, err
	}
	return &OrdinalMap[T]{fields: fs}, nil
}

// Add maps the zero-based column ordinal to the named field. An existing
// entry for the same ordinal or the same field is replaced.
func (m *OrdinalMap[T]) Add(ordinal int, field string) error {
	if ordinal < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeOrdinal, ordinal)
	}
	f, err := m.fields.mustLookup(field)
	if err != nil {
		return err
	}
	m.entries = slices.DeleteFunc(m.entries, func(b Binding[T]) bool {
		return b.Ordinal == ordinal || b.Field.Name == f.Name
	})
	m.entries = append(m.entries, Binding[T]{Ordinal: ordinal, Field: f})
	return nil
}

// Entries returns the current associations in insertion order.
func (m *OrdinalMap[T]) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	for i, b := range m.entries {
		out[i] = Entry{Ordinal: b.Ordinal, Field: b.Field.Name}
	}
	return out
}

// Bind returns the entries unchanged. Ordinals beyond a row's length are
// reported when the row is projected.
func (m *OrdinalMap[T]) Bind([]string) ([]Binding[T], error) {
	return slices.Clone(m.entries), nil
}

func (m *OrdinalMap[T]) NeedsHeaders() bool { return false }

// AutoOptions configure heuristic matching.
type AutoOptions struct {
	CaseSensitive      bool // compare names exactly; folded by default
	IgnoreSpecialChars bool // also match after removing spaces, '-' and '_'
}

// AutoMap resolves columns by name heuristics, remembering every match.
type AutoMap[T any] struct {
	names *NameMap[T]
	opts  AutoOptions
}

// NewAutoMap returns an auto map for T. Struct tag overrides take precedence
// over heuristic matches, and fields with an override are never matched by
// their Go name.
func NewAutoMap[T any](opts AutoOptions) (*AutoMap[T], error) {
	names, err := NewNameMap[T](!opts.CaseSensitive)
	if err != nil {
		return nil, err
	}
	return &AutoMap[T]{names: names, opts: opts}, nil
}

// Add records an explicit association, consulted before any heuristic.
func (m *AutoMap[T]) Add(column, field string) error {
	return m.names.Add(column, field)
}

// Resolve finds the field for column: an explicit or remembered entry, then
// an exact field-name match, then a match with special characters removed
// when enabled. Heuristic matches are remembered.
func (m *AutoMap[T]) Resolve(column string) (Field, bool) {
	if f, ok := m.names.Resolve(column); ok {
		return f, true
	}

	keys := m.names.keys
	want := keys.key(column)
	for _, f := range m.names.fields.list {
		if f.Column == "" && keys.key(f.Name) == want {
			m.names.put(column, f)
			return f, true
		}
	}

	if m.opts.IgnoreSpecialChars {
		want = keys.key(stripSpecial(column))
		for _, f := range m.names.fields.list {
			if f.Column == "" && keys.key(stripSpecial(f.Name)) == want {
				m.names.put(column, f)
				return f, true
			}
		}
	}
	return Field{}, false
}

// Entries returns explicit, override and remembered associations.
func (m *AutoMap[T]) Entries() []Entry {
	return m.names.Entries()
}

// Bind resolves every header. Headers that match no field are skipped, and
// when two headers resolve to one field the first wins.
func (m *AutoMap[T]) Bind(headers []string) ([]Binding[T], error) {
	if headers == nil {
		return nil, fmt.Errorf("mapping: auto map for %s needs headers", m.names.fields.typ)
	}

	bound := make(map[string]bool)
	var bindings []Binding[T]
	for i, h := range headers {
		if h == "" {
			continue
		}
		f, ok := m.Resolve(h)
		if !ok || bound[f.Name] {
			continue
		}
		bound[f.Name] = true
		bindings = append(bindings, Binding[T]{Column: h, Ordinal: i, Field: f})
	}
	return bindings, nil
}

func (m *AutoMap[T]) NeedsHeaders() bool { return true }

var specialChars = strings.NewReplacer(" ", "", "-", "", "_", "")

func stripSpecial(s string) string {
	return specialChars.Replace(s)
}
