// Package tokenize turns text into rows of cells.
//
// Two splitting modes exist. Delimited splits on a delimiter character and,
// when a quote character is configured, treats quoted spans as opaque. Fixed
// width slices each line at precomputed offsets. A Scanner pulls logical
// records from a stream using either mode; only the quote-aware delimited
// scanner lets a record span more than one physical line.
//
// Cells are *string so that a blank cell can be reported as null when
// CellOptions.BlankToNull is set.
package tokenize

import "strings"

// CellOptions are applied to every cell after it has been split out.
type CellOptions struct {
	Trim        bool // strip leading and trailing white space
	BlankToNull bool // empty or white-space-only cells become nil
}

// finish applies the options to one raw cell.
func (o CellOptions) finish(s string) *string {
	if o.Trim {
		s = strings.TrimSpace(s)
	}
	if o.BlankToNull && strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Splitter splits one already materialized line into cells.
type Splitter interface {
	Split(line string) []*string
}

// Strings converts cells to plain strings, mapping nil to "".
func Strings(cells []*string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		if c != nil {
			out[i] = *c
		}
	}
	return out
}
