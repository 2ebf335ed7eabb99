package source

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

func TestSkipBOM(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello,world")...),
			expected: "hello,world",
		},
		{
			name:     "file without BOM",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM",
			input:    []byte{0xEF, 0xBB, 'a'},
			expected: string([]byte{0xEF, 0xBB, 'a'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := skipBOM(bytes.NewReader(tt.input))
			if err != nil {
				t.Fatalf("skipBOM() error = %v", err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSanitizer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{name: "ascii", input: []byte("a,b"), expected: "a,b"},
		{name: "multibyte", input: []byte("Zoë,Ørsted"), expected: "Zoë,Ørsted"},
		{name: "invalid byte", input: []byte{'h', 'e', 0x80, 'l', 'o'}, expected: "he?lo"},
		{name: "truncated at EOF", input: []byte{'a', 0xE2, 0x82}, expected: "a??"},
		{name: "empty", input: []byte{}, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(NewSanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

// oneByteReader returns a single byte per Read so that every multi-byte
// sequence is split across reads.
type oneByteReader struct{ data []byte }

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func TestSanitizer_SplitSequence(t *testing.T) {
	input := "€uro,naïve"
	got, err := io.ReadAll(NewSanitizer(&oneByteReader{data: []byte(input)}))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != input {
		t.Errorf("got %q, want %q", got, input)
	}
}

func TestCounter(t *testing.T) {
	c := NewCounter(strings.NewReader("0123456789"))
	if _, err := io.ReadAll(c); err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if c.N() != 10 {
		t.Errorf("N() = %d, want 10", c.N())
	}
}

func TestCompressionFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Compression
		base string
	}{
		{path: "orders.csv", want: None, base: "orders.csv"},
		{path: "/tmp/orders.csv.gz", want: Gzip, base: "orders.csv"},
		{path: "orders.PSV.BZ2", want: Bzip2, base: "orders.PSV"},
		{path: "orders.tsv.zst", want: Zstd, base: "orders.tsv"},
		{path: "orders.txt.zstd", want: Zstd, base: "orders.txt"},
		{path: "orders.dat.xz", want: XZ, base: "orders.dat"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := CompressionFromPath(tt.path); got != tt.want {
				t.Errorf("CompressionFromPath() = %v, want %v", got, tt.want)
			}
			if got := BaseName(tt.path); got != tt.base {
				t.Errorf("BaseName() = %q, want %q", got, tt.base)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	const content = "\xEF\xBB\xBFid,name\n1,Ann\n"
	const want = "id,name\n1,Ann\n"

	tests := []struct {
		name     string
		file     string
		compress func(t *testing.T, data []byte) []byte
	}{
		{name: "plain", file: "in.csv", compress: func(t *testing.T, data []byte) []byte { return data }},
		{name: "gzip", file: "in.csv.gz", compress: gzipBytes},
		{name: "zstd", file: "in.csv.zst", compress: zstdBytes},
		{name: "xz", file: "in.csv.xz", compress: xzBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, tt.compress(t, []byte(content)), 0o600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			in, err := Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			got, err := io.ReadAll(in)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if err := in.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}

			if string(got) != want {
				t.Errorf("got %q, want %q", got, want)
			}
			if in.BytesRead() != int64(len(want)) {
				t.Errorf("BytesRead() = %d, want %d", in.BytesRead(), len(want))
			}
		})
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("Open() on missing file: expected error")
	}
}

func TestWrap_BadGzip(t *testing.T) {
	if _, err := Wrap(strings.NewReader("not gzip"), Gzip); err == nil {
		t.Error("Wrap() with invalid gzip data: expected error")
	}
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
