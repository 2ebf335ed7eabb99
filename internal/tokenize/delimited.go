package tokenize

import (
	"strings"

	"github.com/JonMunkholm/filerift/internal/dialect"
)

// Delimited splits lines on a delimiter, honoring an optional quote.
type Delimited struct {
	Dialect dialect.Dialect
	Cells   CellOptions
}

// NewDelimited returns a splitter for the given dialect.
func NewDelimited(d dialect.Dialect, opts CellOptions) *Delimited {
	return &Delimited{Dialect: d, Cells: opts}
}

// Split splits a single line. Without a quote character the line ends at the
// first CR or LF and is cut at every delimiter. With one, delimiters inside quoted spans are kept as
// content and every quote character is removed from the cell text.
//
// An empty line yields one empty cell and a trailing delimiter yields a
// trailing empty cell.
func (s *Delimited) Split(line string) []*string {
	if !s.Dialect.HasQuote() {
		if i := strings.IndexAny(line, "\r\n"); i >= 0 {
			line = line[:i]
		}
		parts := strings.Split(line, string(s.Dialect.Delimiter))
		cells := make([]*string, len(parts))
		for i, p := range parts {
			cells[i] = s.Cells.finish(p)
		}
		return cells
	}

	m := newMachine(s.Dialect, s.Cells)
	for _, c := range line {
		// A lone line has no record boundary; keep newlines as content.
		if c == '\n' && !m.quoted {
			m.field.WriteRune(c)
			continue
		}
		m.feed(c)
	}
	return m.flush()
}

// machine is the quote-aware record state machine. It has two states,
// normal and quoted, tracked by the quoted flag.
type machine struct {
	delim rune
	quote rune
	opts  CellOptions

	quoted bool
	field  strings.Builder
	cells  []*string
	dirty  bool // at least one rune consumed for the current record
}

func newMachine(d dialect.Dialect, opts CellOptions) *machine {
	return &machine{delim: d.Delimiter, quote: d.Quote, opts: opts}
}

// feed consumes one rune and reports whether it ended the record.
func (m *machine) feed(c rune) bool {
	m.dirty = true

	if c == m.quote {
		m.quoted = !m.quoted
		return false
	}

	if m.quoted {
		m.field.WriteRune(c)
		return false
	}

	switch c {
	case m.delim:
		m.endCell()
	case '\r':
	case '\n':
		return true
	default:
		m.field.WriteRune(c)
	}
	return false
}

func (m *machine) endCell() {
	m.cells = append(m.cells, m.opts.finish(m.field.String()))
	m.field.Reset()
}

// flush emits the pending record and resets the machine.
func (m *machine) flush() []*string {
	m.endCell()
	cells := m.cells
	m.cells = nil
	m.quoted = false
	m.dirty = false
	return cells
}
