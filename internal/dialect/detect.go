package dialect

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"
)

// DefaultSampleSize is the number of raw lines sampled when none is given.
const DefaultSampleSize = 20

// ErrUndetermined is returned when no tier yields exactly one delimiter.
var ErrUndetermined = errors.New("dialect: unable to determine delimiter")

// quotedSpan matches the first "..." or '...' span of a line.
var quotedSpan = regexp.MustCompile(`"([^"]*)"|'([^']*)'`)

// candidateTier decides which characters may be delimiters.
type candidateTier func(c rune) bool

var defaultTiers = []candidateTier{
	func(c rune) bool { return c == ',' || c == '\t' || c == '|' },
	func(c rune) bool { return !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != ' ' },
	func(c rune) bool { return c == ' ' },
}

// Detector infers dialects from sampled lines.
// The zero value is ready to use and tries the default tiers.
type Detector struct {
	allowed map[rune]bool
}

// NewDetector returns a Detector. When allowed is non-empty only those
// characters are considered, in a single tier.
func NewDetector(allowed ...rune) *Detector {
	d := &Detector{}
	if len(allowed) > 0 {
		d.allowed = make(map[rune]bool, len(allowed))
		for _, c := range allowed {
			d.allowed[c] = true
		}
	}
	return d
}

// Detect infers the quote character first and then the delimiter, using
// the quote to exclude quoted spans from the delimiter counts.
func (d *Detector) Detect(rows []string) (Dialect, error) {
	quote := d.Quote(rows)
	delim, err := d.Delimiter(rows, quote)
	if err != nil {
		return Dialect{}, err
	}
	return Dialect{Delimiter: delim, Quote: quote}, nil
}

// Delimiter returns the single character whose count outside quoted spans
// is identical on every row. quote may be 0.
func (d *Detector) Delimiter(rows []string, quote rune) (rune, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: empty sample", ErrUndetermined)
	}

	tiers := defaultTiers
	if len(d.allowed) > 0 {
		tiers = []candidateTier{func(c rune) bool { return d.allowed[c] }}
	}

	for _, tier := range tiers {
		if c, ok := findDelimiter(rows, quote, tier); ok {
			return c, nil
		}
	}
	return 0, ErrUndetermined
}

// Quote returns the enclosing character of the first quoted span found,
// scanning rows in order, or 0 when no row contains one.
func (d *Detector) Quote(rows []string) rune {
	for _, row := range rows {
		loc := quotedSpan.FindStringIndex(row)
		if loc != nil {
			return rune(row[loc[0]])
		}
	}
	return 0
}

// findDelimiter applies one tier. It succeeds only when exactly one
// candidate appears on every row with the same count.
func findDelimiter(rows []string, quote rune, isCandidate candidateTier) (rune, bool) {
	counts := make([]map[rune]int, len(rows))
	var order []rune
	seen := make(map[rune]bool)

	for i, row := range rows {
		perRow := make(map[rune]int)
		quoted := false
		for _, c := range row {
			if quote != 0 && c == quote {
				quoted = !quoted
				continue
			}
			if quoted || c == '\r' || c == '\n' || !isCandidate(c) {
				continue
			}
			perRow[c]++
			if !seen[c] {
				seen[c] = true
				order = append(order, c)
			}
		}
		counts[i] = perRow
	}

	var found []rune
	for _, c := range order {
		if uniformCount(counts, c) {
			found = append(found, c)
		}
	}

	if len(found) != 1 {
		return 0, false
	}
	return found[0], true
}

// uniformCount reports whether c occurs on every row the same number of times.
func uniformCount(counts []map[rune]int, c rune) bool {
	want, ok := counts[0][c]
	if !ok {
		return false
	}
	for _, perRow := range counts[1:] {
		n, ok := perRow[c]
		if !ok || n != want {
			return false
		}
	}
	return true
}

// Sample reads up to n raw lines from r. Line terminators are removed.
// n <= 0 selects DefaultSampleSize.
func Sample(r io.Reader, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultSampleSize
	}

	br := bufio.NewReader(r)
	rows := make([]string, 0, n)
	for len(rows) < n {
		line, err := br.ReadString('\n')
		if line != "" {
			rows = append(rows, strings.TrimRight(line, "\r\n"))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dialect: read sample: %w", err)
		}
	}
	return rows, nil
}

// DetectReader samples r and detects its dialect with the default tiers.
func DetectReader(r io.Reader, sampleSize int) (Dialect, error) {
	rows, err := Sample(r, sampleSize)
	if err != nil {
		return Dialect{}, err
	}
	return new(Detector).Detect(rows)
}
