// Package dialect describes how a delimited file is structured and infers
// that structure from a sample of raw lines when the caller does not know it.
//
// A Dialect is the pair of a delimiter and an optional quote character. The
// zero rune means "no quote": delimiters and line breaks always end fields
// and rows, and no field can span lines.
//
// # Detection
//
// Delimiter inference counts candidate characters per sampled line (ignoring
// anything inside a quoted span) and accepts the single candidate whose count
// is identical on every line. Three candidate tiers are tried in order:
//
//  1. The conventional set: ',', '\t', '|'
//  2. Any character that is not a letter, digit or space
//  3. The space character
//
// Quote inference returns the enclosing character of the first "..." or '...'
// span found in the sample.
//
// Samples are read line by line without quote awareness, so a quoted field
// with an embedded newline inside the sampled prefix can skew the counts.
package dialect

import (
	"fmt"
	"strconv"
)

// Dialect is immutable once detected or supplied.
type Dialect struct {
	Delimiter rune
	Quote     rune // 0 when the file is not quoted
}

// Common presets.
var (
	CSV = Dialect{Delimiter: ',', Quote: '"'}
	PSV = Dialect{Delimiter: '|', Quote: '"'}
	TSV = Dialect{Delimiter: '\t'}
)

// HasQuote reports whether a quote character is configured.
func (d Dialect) HasQuote() bool {
	return d.Quote != 0
}

// String renders the dialect for logs, e.g. `delimiter=',' quote='"'`.
func (d Dialect) String() string {
	quote := "none"
	if d.HasQuote() {
		quote = strconv.QuoteRune(d.Quote)
	}
	return fmt.Sprintf("delimiter=%s quote=%s", strconv.QuoteRune(d.Delimiter), quote)
}

// ParseRune converts a configuration value into a single character.
// It accepts a literal character, an escape such as `\t`, or one of the
// names "tab", "comma", "pipe", "semicolon", "space". An empty value or
// "none" yields 0.
func ParseRune(s string) (rune, error) {
	switch s {
	case "", "none":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	case "pipe":
		return '|', nil
	case "semicolon":
		return ';', nil
	case "space":
		return ' ', nil
	case "dquote":
		return '"', nil
	case "squote":
		return '\'', nil
	}

	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("dialect: %q is not a single character", s)
	}
	return runes[0], nil
}
