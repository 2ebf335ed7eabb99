// Package reader exposes delimited and fixed-width files as a forward-only
// sequence of raw rows.
//
// A Reader owns the stream it reads: when the stream implements io.Closer it
// is closed by Close, when the last row has been read, or when construction
// fails. Rows are numbered from 1; a header row is consumed at construction
// and does not take a number.
package reader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"golang.org/x/text/cases"

	"github.com/JonMunkholm/filerift/internal/dialect"
	"github.com/JonMunkholm/filerift/internal/source"
	"github.com/JonMunkholm/filerift/internal/tokenize"
)

var (
	ErrDelimiterRequired = errors.New("reader: delimiter is required")
	ErrNoColumns         = errors.New("reader: fixed width needs at least one column")
	ErrNoHeaders         = errors.New("reader: operation requires headers")
	ErrColumnNotFound    = errors.New("reader: column not found")
	ErrIndexOutOfRange   = errors.New("reader: index out of range")
	ErrNoRow             = errors.New("reader: no current row")
	ErrClosed            = errors.New("reader: reader is closed")
)

// Options control row assembly. The zero value reads a headerless file and
// keeps cells exactly as split.
type Options struct {
	HasHeader        bool
	Trim             bool
	BlankToNull      bool
	IgnoreHeaderCase bool     // GetOrdinal folds case
	DateFormats      []string // exact layouts for GetTime, defaults when empty
	Logger           *slog.Logger
}

func (o Options) cells() tokenize.CellOptions {
	return tokenize.CellOptions{Trim: o.Trim, BlankToNull: o.BlankToNull}
}

// Reader is a forward-only cursor over rows. It is not safe for concurrent
// use.
type Reader struct {
	scanner tokenize.Scanner
	closer  io.Closer
	opts    Options
	log     *slog.Logger

	headers    []string
	fieldCount int
	fold       cases.Caser

	row    []*string
	raw    string
	number int
	err    error
	closed bool
}

// NewDelimited returns a reader for a delimited stream.
func NewDelimited(r io.Reader, d dialect.Dialect, opts Options) (*Reader, error) {
	if d.Delimiter == 0 {
		closeIfCloser(r)
		return nil, ErrDelimiterRequired
	}
	return newReader(r, tokenize.NewScanner(r, d, opts.cells()), nil, opts)
}

// NewFixedWidth returns a reader that slices lines at fixed offsets. Column
// names, when given, become the headers; a header line in the file is then
// skipped rather than used.
func NewFixedWidth(r io.Reader, cols []tokenize.Column, opts Options) (*Reader, error) {
	if len(cols) == 0 {
		closeIfCloser(r)
		return nil, ErrNoColumns
	}
	fw, err := tokenize.NewFixedWidthColumns(opts.cells(), cols)
	if err != nil {
		closeIfCloser(r)
		return nil, fmt.Errorf("reader: %w", err)
	}
	return newReader(r, tokenize.NewLineScanner(r, fw), fw.Names(), opts)
}

// NewFixedWidthLengths is NewFixedWidth for unnamed columns of the given widths.
func NewFixedWidthLengths(r io.Reader, lengths []int, opts Options) (*Reader, error) {
	cols := make([]tokenize.Column, len(lengths))
	for i, n := range lengths {
		cols[i] = tokenize.Column{Position: i, Length: n}
	}
	return NewFixedWidth(r, cols, opts)
}

// OpenDelimited opens path with source.Open and reads it as delimited.
func OpenDelimited(path string, d dialect.Dialect, opts Options) (*Reader, error) {
	in, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	return NewDelimited(in, d, opts)
}

// OpenFixedWidth opens path with source.Open and reads it as fixed width.
func OpenFixedWidth(path string, cols []tokenize.Column, opts Options) (*Reader, error) {
	in, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	return NewFixedWidth(in, cols, opts)
}

func newReader(r io.Reader, sc tokenize.Scanner, names []string, opts Options) (*Reader, error) {
	rd := &Reader{
		scanner:    sc,
		opts:       opts,
		log:        opts.Logger,
		headers:    names,
		fieldCount: -1,
	}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	if rd.log == nil {
		rd.log = slog.Default()
	}
	if opts.IgnoreHeaderCase {
		rd.fold = cases.Fold()
	}
	if names != nil {
		rd.fieldCount = len(names)
	}

	if opts.HasHeader {
		cells, _, err := sc.Next()
		switch {
		case errors.Is(err, io.EOF):
			// Empty file: an empty header row and no data rows.
			if names == nil {
				rd.headers = []string{}
				rd.fieldCount = 0
			}
		case err != nil:
			rd.Close()
			return nil, fmt.Errorf("reader: read header: %w", err)
		case names == nil:
			rd.headers = tokenize.Strings(cells)
			rd.fieldCount = len(cells)
		}
		rd.log.Debug("captured headers", "headers", rd.headers)
	}
	return rd, nil
}

func closeIfCloser(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		c.Close()
	}
}

// Read advances to the next row. It returns false at end of stream or on a
// read error, and the reader is closed in both cases; check Err.
func (r *Reader) Read() bool {
	if r.closed {
		return false
	}

	cells, raw, err := r.scanner.Next()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = err
		}
		r.row, r.raw = nil, ""
		r.Close()
		return false
	}

	r.row, r.raw = cells, raw
	r.number++
	if r.fieldCount < 0 {
		r.fieldCount = len(cells)
	}
	return true
}

// Err returns the first non-EOF error met by Read.
func (r *Reader) Err() error { return r.err }

// Close releases the stream. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer != nil {
		if err := r.closer.Close(); err != nil {
			return fmt.Errorf("reader: close: %w", err)
		}
	}
	return nil
}

// IsClosed reports whether Close has run.
func (r *Reader) IsClosed() bool { return r.closed }

// Row returns the current row's cells. Nil cells are nulls. The slice is
// owned by the reader until the next Read; use Values for a copy.
func (r *Reader) Row() []*string { return r.row }

// Values returns a copy of the current row.
func (r *Reader) Values() []*string { return slices.Clone(r.row) }

// Raw returns the current row's source text without its line break.
func (r *Reader) Raw() string { return r.raw }

// RowNumber returns the 1-based number of the current row, 0 before the
// first Read.
func (r *Reader) RowNumber() int { return r.number }

// FieldCount is the cell count of the header, or of the first row when there
// is no header. It is -1 until known. Later rows are not checked against it.
func (r *Reader) FieldCount() int { return r.fieldCount }

// HasHeaders reports whether column names are known.
func (r *Reader) HasHeaders() bool { return r.headers != nil }

// Headers returns the column names, or nil without headers.
func (r *Reader) Headers() []string { return slices.Clone(r.headers) }

// Options returns the options the reader was built with.
func (r *Reader) Options() Options { return r.opts }

// GetOrdinal returns the index of the first column called name.
func (r *Reader) GetOrdinal(name string) (int, error) {
	if r.headers == nil {
		return -1, ErrNoHeaders
	}
	want := r.key(name)
	for i, h := range r.headers {
		if r.key(h) == want {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

func (r *Reader) key(s string) string {
	if !r.opts.IgnoreHeaderCase {
		return s
	}
	return r.fold.String(s)
}

// GetName returns the header of column i.
func (r *Reader) GetName(i int) (string, error) {
	if r.headers == nil {
		return "", ErrNoHeaders
	}
	if i < 0 || i >= len(r.headers) {
		return "", fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	if r.headers[i] == "" {
		return "", fmt.Errorf("%w: column %d has no name", ErrColumnNotFound, i)
	}
	return r.headers[i], nil
}

// GetValue returns cell i of the current row, nil for a null cell.
func (r *Reader) GetValue(i int) (*string, error) {
	if r.closed && r.row == nil {
		return nil, ErrClosed
	}
	if r.row == nil {
		return nil, ErrNoRow
	}
	if i < 0 || i >= len(r.row) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(r.row))
	}
	return r.row[i], nil
}

// Lookup returns the cell of the named column in the current row.
func (r *Reader) Lookup(name string) (*string, error) {
	i, err := r.GetOrdinal(name)
	if err != nil {
		return nil, err
	}
	return r.GetValue(i)
}

// IsNull reports whether cell i is null.
func (r *Reader) IsNull(i int) (bool, error) {
	c, err := r.GetValue(i)
	if err != nil {
		return false, err
	}
	return c == nil, nil
}

// GetString returns cell i, "" for a null cell.
func (r *Reader) GetString(i int) (string, error) {
	c, err := r.GetValue(i)
	if err != nil || c == nil {
		return "", err
	}
	return *c, nil
}
