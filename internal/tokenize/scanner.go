package tokenize

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/filerift/internal/dialect"
)

// Scanner produces logical records from a stream. Next returns io.EOF once
// the stream is exhausted and no partial record remains.
type Scanner interface {
	Next() (cells []*string, raw string, err error)
}

// NewScanner returns a scanner for a delimited stream. With a quote
// character the quote-aware record scanner is used, otherwise records are
// single lines cut by the delimited splitter.
func NewScanner(r io.Reader, d dialect.Dialect, opts CellOptions) Scanner {
	if d.HasQuote() {
		return &RecordScanner{
			br: bufio.NewReader(r),
			m:  newMachine(d, opts),
		}
	}
	return NewLineScanner(r, NewDelimited(d, opts))
}

// RecordScanner assembles records that may span physical lines when a quoted
// field contains LF or CRLF.
type RecordScanner struct {
	br  *bufio.Reader
	m   *machine
	raw strings.Builder
	err error
}

// Next returns the next record and its source text without the terminating
// line break. An unterminated quote at end of stream yields what has been
// read so far as the final record.
func (s *RecordScanner) Next() ([]*string, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}

	s.raw.Reset()
	for {
		c, _, err := s.br.ReadRune()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = fmt.Errorf("tokenize: read record: %w", err)
				return nil, "", s.err
			}
			s.err = io.EOF
			if !s.m.dirty {
				return nil, "", io.EOF
			}
			return s.m.flush(), s.rawText(), nil
		}

		if s.m.feed(c) {
			return s.m.flush(), s.rawText(), nil
		}
		s.raw.WriteRune(c)
	}
}

func (s *RecordScanner) rawText() string {
	return strings.TrimSuffix(s.raw.String(), "\r")
}

// LineScanner reads one physical line per record and hands it to a Splitter.
type LineScanner struct {
	br    *bufio.Reader
	split Splitter
	err   error
}

// NewLineScanner returns a scanner that splits each line with split.
func NewLineScanner(r io.Reader, split Splitter) *LineScanner {
	return &LineScanner{br: bufio.NewReader(r), split: split}
}

// Next returns the next line split into cells. Lines end at LF, CRLF or a
// lone CR.
func (s *LineScanner) Next() ([]*string, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}

	line, err := readLine(s.br)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = fmt.Errorf("tokenize: read line: %w", err)
			return nil, "", s.err
		}
		s.err = io.EOF
		if line == "" {
			return nil, "", io.EOF
		}
	}

	return s.split.Split(line), line, nil
}

// readLine reads up to the next LF, CRLF or lone CR and returns the line
// without its terminator. The last line of a stream is returned with io.EOF.
func readLine(br *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := br.ReadByte()
		if err != nil {
			return sb.String(), err
		}
		switch b {
		case '\n':
			return sb.String(), nil
		case '\r':
			if next, err := br.Peek(1); err == nil && next[0] == '\n' {
				_, _ = br.ReadByte()
			}
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}
