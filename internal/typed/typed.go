// Package typed projects raw rows onto structs.
//
// A Reader pairs one row reader with one mapping. All binds the mapping to
// the file's columns once, then converts each row into a fresh T. What
// happens when a row cannot be converted depends on the Policy:
//
//   - FailFast (default) yields the error once and ends the sequence.
//   - CollectAndContinue records a ReadError, drops the row and moves on.
//
// The sequence is single use. Ending the range loop early releases the
// underlying stream.
package typed

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/JonMunkholm/filerift/internal/dialect"
	"github.com/JonMunkholm/filerift/internal/mapping"
	"github.com/JonMunkholm/filerift/internal/reader"
	"github.com/JonMunkholm/filerift/internal/tokenize"
)

var (
	ErrTypedNeedsHeaders = errors.New("typed: mapping requires a header row")
	ErrAlreadyRead       = errors.New("typed: rows already read")
)

// Policy selects how row-scoped errors are handled.
type Policy int

const (
	FailFast Policy = iota
	CollectAndContinue
)

func (p Policy) String() string {
	if p == CollectAndContinue {
		return "collect-and-continue"
	}
	return "fail-fast"
}

// RowError is a row that could not be projected.
type RowError struct {
	RowNumber int
	Raw       string
	Column    string // source column, or "#n" for an ordinal
	Err       error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %v", e.RowNumber, e.Err)
	}
	return fmt.Sprintf("row %d, column %s: %v", e.RowNumber, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ReadError is a row skipped in collect-and-continue mode.
type ReadError struct {
	RowNumber int
	Raw       string
	Err       error
}

func (e ReadError) Error() string {
	return fmt.Sprintf("row %d: %v", e.RowNumber, e.Err)
}

// Options configure a typed Reader.
type Options struct {
	Policy Policy
	Logger *slog.Logger
}

// Reader yields one T per source row.
type Reader[T any] struct {
	rows   *reader.Reader
	m      mapping.Map[T]
	opts   Options
	log    *slog.Logger
	errors []ReadError
	used   bool
}

// New returns a typed reader over rows. It takes ownership of rows. A name
// or auto map needs rows with headers.
func New[T any](rows *reader.Reader, m mapping.Map[T], opts Options) (*Reader[T], error) {
	if m.NeedsHeaders() && !rows.HasHeaders() {
		rows.Close()
		return nil, ErrTypedNeedsHeaders
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Reader[T]{rows: rows, m: m, opts: opts, log: log}, nil
}

// All returns the rows as a sequence. In fail-fast mode the first error is
// yielded with a zero T and ends the sequence. In collect-and-continue mode
// the sequence only yields errors that are not row scoped, such as I/O
// failures.
func (r *Reader[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		defer r.rows.Close()

		if r.used {
			yield(zero, ErrAlreadyRead)
			return
		}
		r.used = true

		var headers []string
		if r.rows.HasHeaders() {
			headers = r.rows.Headers()
		}
		bindings, err := r.m.Bind(headers)
		if err != nil {
			yield(zero, fmt.Errorf("typed: bind columns: %w", err))
			return
		}

		layouts := r.rows.Options().DateFormats
		for r.rows.Read() {
			item, rowErr := project(r.rows, bindings, layouts)
			if rowErr != nil {
				if r.opts.Policy == FailFast {
					yield(zero, rowErr)
					return
				}
				r.errors = append(r.errors, ReadError{RowNumber: rowErr.RowNumber, Raw: rowErr.Raw, Err: rowErr})
				r.log.Warn("skipping row", "row", rowErr.RowNumber, "error", rowErr.Err)
				continue
			}
			if !yield(item, nil) {
				return
			}
		}
		if err := r.rows.Err(); err != nil {
			yield(zero, err)
		}
	}
}

// project builds one T from the current row.
func project[T any](rows *reader.Reader, bindings []mapping.Binding[T], layouts []string) (T, *RowError) {
	var item T
	cells := rows.Row()
	for _, b := range bindings {
		column := b.Column
		if column == "" {
			column = fmt.Sprintf("#%d", b.Ordinal)
		}
		if b.Ordinal >= len(cells) {
			return item, &RowError{
				RowNumber: rows.RowNumber(),
				Raw:       rows.Raw(),
				Column:    column,
				Err:       fmt.Errorf("%w: ordinal %d of %d cells", reader.ErrIndexOutOfRange, b.Ordinal, len(cells)),
			}
		}
		if err := b.Set(&item, cells[b.Ordinal], layouts); err != nil {
			return item, &RowError{RowNumber: rows.RowNumber(), Raw: rows.Raw(), Column: column, Err: err}
		}
	}
	return item, nil
}

// Collect reads every row into a slice, stopping at the first error yielded.
func (r *Reader[T]) Collect() ([]T, error) {
	var out []T
	for item, err := range r.All() {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Errors returns the rows skipped in collect-and-continue mode.
func (r *Reader[T]) Errors() []ReadError {
	out := make([]ReadError, len(r.errors))
	copy(out, r.errors)
	return out
}

// Close releases the underlying stream.
func (r *Reader[T]) Close() error { return r.rows.Close() }

// Headers returns the source column names, nil without headers.
func (r *Reader[T]) Headers() []string { return r.rows.Headers() }

// resolve returns m, or the mapping registered for T when m is nil.
func resolve[T any](m mapping.Map[T], reg *mapping.Registry) (mapping.Map[T], error) {
	if m != nil {
		return m, nil
	}
	if reg == nil {
		return nil, fmt.Errorf("%w: no registry supplied", mapping.ErrNotRegistered)
	}
	return mapping.Lookup[T](reg)
}

// NewDelimited opens path and returns a typed reader over it. When m is nil
// the mapping registered for T in reg is used.
func NewDelimited[T any](path string, d dialect.Dialect, ro reader.Options, m mapping.Map[T], reg *mapping.Registry, opts Options) (*Reader[T], error) {
	m, err := resolve(m, reg)
	if err != nil {
		return nil, err
	}
	if m.NeedsHeaders() && !ro.HasHeader {
		return nil, ErrTypedNeedsHeaders
	}
	rows, err := reader.OpenDelimited(path, d, ro)
	if err != nil {
		return nil, err
	}
	return New(rows, m, opts)
}

// NewFixedWidth opens path as a fixed-width file and returns a typed reader
// over it. When m is nil the mapping registered for T in reg is used.
func NewFixedWidth[T any](path string, cols []tokenize.Column, ro reader.Options, m mapping.Map[T], reg *mapping.Registry, opts Options) (*Reader[T], error) {
	m, err := resolve(m, reg)
	if err != nil {
		return nil, err
	}
	rows, err := reader.OpenFixedWidth(path, cols, ro)
	if err != nil {
		return nil, err
	}
	return New(rows, m, opts)
}
