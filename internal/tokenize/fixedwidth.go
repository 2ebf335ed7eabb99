package tokenize

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Column describes one fixed-width column. Position orders the columns and
// Length is the width in characters. Name becomes a header when set.
type Column struct {
	Position int
	Length   int
	Name     string
}

// FixedWidth slices lines at fixed character offsets. Every cell is trimmed.
type FixedWidth struct {
	starts []int
	names  []string
	Cells  CellOptions
}

// NewFixedWidth builds a splitter from raw column lengths.
func NewFixedWidth(opts CellOptions, lengths ...int) (*FixedWidth, error) {
	cols := make([]Column, len(lengths))
	for i, n := range lengths {
		cols[i] = Column{Position: i, Length: n}
	}
	return NewFixedWidthColumns(opts, cols)
}

// NewFixedWidthColumns builds a splitter from column descriptors. The
// descriptors are sorted by Position before offsets are computed.
func NewFixedWidthColumns(opts CellOptions, cols []Column) (*FixedWidth, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("tokenize: fixed width needs at least one column")
	}

	sorted := slices.Clone(cols)
	slices.SortStableFunc(sorted, func(a, b Column) int {
		return cmp.Compare(a.Position, b.Position)
	})

	fw := &FixedWidth{
		starts: make([]int, len(sorted)),
		Cells:  opts,
	}
	named := false
	offset := 0
	for i, c := range sorted {
		if c.Length <= 0 {
			return nil, fmt.Errorf("tokenize: column %d has non-positive length %d", i, c.Length)
		}
		fw.starts[i] = offset
		offset += c.Length
		if c.Name != "" {
			named = true
		}
	}
	if named {
		fw.names = make([]string, len(sorted))
		for i, c := range sorted {
			fw.names[i] = c.Name
		}
	}
	return fw, nil
}

// Names returns the column names in offset order, or nil when the columns
// were given as raw lengths.
func (f *FixedWidth) Names() []string {
	return slices.Clone(f.names)
}

// Split slices line at the column offsets. Offsets count characters, not
// bytes. The last column extends to the end of the line and columns past the
// end of a short line are empty.
func (f *FixedWidth) Split(line string) []*string {
	line = strings.TrimSuffix(line, "\r")
	runes := []rune(line)

	cells := make([]*string, len(f.starts))
	for i, start := range f.starts {
		end := len(runes)
		if i+1 < len(f.starts) {
			end = min(f.starts[i+1], len(runes))
		}
		var s string
		if start < len(runes) {
			s = strings.TrimSpace(string(runes[start:end]))
		}
		cells[i] = f.Cells.finish(s)
	}
	return cells
}
