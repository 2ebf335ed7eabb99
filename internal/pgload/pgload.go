// Package pgload streams rows from a reader into PostgreSQL with COPY.
package pgload

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/filerift/internal/coerce"
	"github.com/JonMunkholm/filerift/internal/reader"
	"github.com/JonMunkholm/filerift/internal/typed"
)

var ErrNoColumns = errors.New("pgload: no columns")

// Copier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Column is one destination column. Source names the file column to read;
// when empty Name is used. Files without headers are read by position. A
// zero Kind is written as text.
type Column struct {
	Name   string
	Kind   coerce.Kind
	Source string
}

// ParseColumns parses "name:kind" pairs separated by commas, such as
// "id:int,email:text,signed_up:date". A pair without a kind is text, and
// "name=source:kind" reads the file column source into name.
func ParseColumns(list string) ([]Column, error) {
	var cols []Column
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, kindName, hasKind := strings.Cut(part, ":")
		col := Column{Name: strings.TrimSpace(name), Kind: coerce.KindString}
		if dst, src, ok := strings.Cut(col.Name, "="); ok {
			col.Name, col.Source = strings.TrimSpace(dst), strings.TrimSpace(src)
		}
		if col.Name == "" {
			return nil, fmt.Errorf("pgload: empty column name in %q", part)
		}
		if hasKind {
			kind, err := coerce.ParseKind(kindName)
			if err != nil {
				return nil, fmt.Errorf("pgload: column %s: %w", col.Name, err)
			}
			col.Kind = kind
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, ErrNoColumns
	}
	return cols, nil
}

// ParseTable splits "schema.table" into an identifier.
func ParseTable(name string) pgx.Identifier {
	return pgx.Identifier(strings.Split(name, "."))
}

// Load copies every remaining row of rows into table and returns the number
// of rows written. The first row that fails to convert aborts the copy with
// a *typed.RowError. Blank cells are written as NULL.
func Load(ctx context.Context, db Copier, table string, cols []Column, rows *reader.Reader) (int64, error) {
	defer rows.Close()

	if len(cols) == 0 {
		return 0, ErrNoColumns
	}

	src, err := newRowSource(rows, cols)
	if err != nil {
		return 0, err
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	n, err := db.CopyFrom(ctx, ParseTable(table), names, src)
	if err != nil {
		return n, fmt.Errorf("pgload: copy into %s: %w", table, err)
	}
	return n, nil
}

// rowSource adapts a reader to pgx.CopyFromSource.
type rowSource struct {
	rows    *reader.Reader
	cols    []Column
	ordinal []int
	layouts []string
	values  []any
	err     error
}

func newRowSource(rows *reader.Reader, cols []Column) (*rowSource, error) {
	s := &rowSource{
		rows:    rows,
		cols:    slices.Clone(cols),
		ordinal: make([]int, len(cols)),
		layouts: rows.Options().DateFormats,
	}
	positional := len(rows.Headers()) == 0
	for i, c := range cols {
		if c.Kind == coerce.KindUnsupported {
			s.cols[i].Kind = coerce.KindString
		}
		if positional {
			s.ordinal[i] = i
			continue
		}
		source := c.Source
		if source == "" {
			source = c.Name
		}
		idx, err := rows.GetOrdinal(source)
		if err != nil {
			return nil, fmt.Errorf("pgload: column %s: %w", c.Name, err)
		}
		s.ordinal[i] = idx
	}
	return s, nil
}

func (s *rowSource) Next() bool {
	if s.err != nil || !s.rows.Read() {
		return false
	}

	values := make([]any, len(s.cols))
	for i, c := range s.cols {
		cell, err := s.rows.GetValue(s.ordinal[i])
		if err == nil {
			values[i], err = encode(c.Kind, cell, s.layouts)
		}
		if err != nil {
			s.err = &typed.RowError{
				RowNumber: s.rows.RowNumber(),
				Raw:       s.rows.Raw(),
				Column:    c.Name,
				Err:       err,
			}
			return false
		}
	}
	s.values = values
	return true
}

func (s *rowSource) Values() ([]any, error) { return s.values, nil }

func (s *rowSource) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.rows.Err()
}

// encode converts a cell into a value pgx can encode for COPY.
func encode(kind coerce.Kind, cell *string, layouts []string) (any, error) {
	v, err := coerce.Value(kind, cell, layouts)
	if err != nil || v == nil {
		return nil, err
	}
	switch x := v.(type) {
	case uuid.UUID:
		return pgtype.UUID{Bytes: x, Valid: true}, nil
	case coerce.Char:
		if x == 0 {
			return nil, nil
		}
		return string(rune(x)), nil
	case uint8:
		return int16(x), nil
	}
	return v, nil
}
