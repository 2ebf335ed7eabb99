package source

// wrap.go holds the io.Reader wrappers applied to every input before
// tokenizing:
//
//   - skipBOM: drops a leading UTF-8 byte order mark
//   - Sanitizer: replaces invalid UTF-8 bytes with '?'
//   - Counter: tracks bytes handed to the tokenizer

import (
	"bufio"
	"io"
	"sync/atomic"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns a reader positioned after a leading UTF-8 BOM, if any.
func skipBOM(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(utf8BOM))
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(head) == len(utf8BOM) && head[0] == utf8BOM[0] && head[1] == utf8BOM[1] && head[2] == utf8BOM[2] {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
	}
	return br, nil
}

// Sanitizer replaces each invalid UTF-8 byte with '?' while streaming. A
// multi-byte sequence split across two reads is carried over to the next
// read instead of being treated as invalid. Callers must read with buffers
// of at least utf8.UTFMax bytes; bufio readers always do.
type Sanitizer struct {
	r       io.Reader
	pending []byte
}

// NewSanitizer wraps r.
func NewSanitizer(r io.Reader) *Sanitizer {
	return &Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

// Read implements io.Reader.
func (s *Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	if asciiOnly(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

func asciiOnly(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to hand
// out. Unless atEOF, an incomplete trailing sequence is moved to pending.
func (s *Sanitizer) sanitize(data []byte, atEOF bool) int {
	w := 0
	for i := 0; i < len(data); {
		c, size := utf8.DecodeRune(data[i:])
		if c == utf8.RuneError && size == 1 {
			if !atEOF && !utf8.FullRune(data[i:]) {
				s.pending = append(s.pending, data[i:]...)
				return w
			}
			data[w] = '?'
			w++
			i++
			continue
		}
		copy(data[w:], data[i:i+size])
		w += size
		i += size
	}
	return w
}

// Counter counts the bytes read through it. It is safe to read N from
// another goroutine, e.g. for progress reporting.
type Counter struct {
	r io.Reader
	n atomic.Int64
}

// NewCounter wraps r.
func NewCounter(r io.Reader) *Counter {
	return &Counter{r: r}
}

func (c *Counter) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// N returns the number of bytes read so far.
func (c *Counter) N() int64 {
	return c.n.Load()
}
