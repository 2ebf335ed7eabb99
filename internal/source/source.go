// Package source opens flat-file inputs for reading.
//
// Inputs are decompressed based on their file extension, stripped of a
// UTF-8 byte order mark and sanitized so that the tokenizer only ever sees
// valid UTF-8.
package source

import (
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression identifies a supported compression format.
type Compression int

const (
	None Compression = iota
	Gzip
	Bzip2
	Zstd
	XZ
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case Zstd:
		return "zstd"
	case XZ:
		return "xz"
	default:
		return "none"
	}
}

// CompressionFromPath picks the compression format from the file extension.
func CompressionFromPath(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".bz2":
		return Bzip2
	case ".zst", ".zstd":
		return Zstd
	case ".xz":
		return XZ
	default:
		return None
	}
}

// BaseName strips a compression extension, so "orders.csv.gz" yields
// "orders.csv".
func BaseName(path string) string {
	base := filepath.Base(path)
	if CompressionFromPath(base) != None {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base
}

// Input is an opened, decoded stream. Closing it releases every layer,
// including the underlying file when Open created it.
type Input struct {
	io.Reader
	counter *Counter
	closers []func() error
}

// BytesRead returns the number of decoded bytes consumed so far.
func (in *Input) BytesRead() int64 {
	return in.counter.N()
}

// Close releases the layers in reverse order of creation and reports every
// failure.
func (in *Input) Close() error {
	var errs []error
	for i := len(in.closers) - 1; i >= 0; i-- {
		if err := in.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	in.closers = nil
	return errors.Join(errs...)
}

// Open opens path, choosing a decompressor from its extension.
func Open(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	in, err := Wrap(f, CompressionFromPath(path))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	in.closers = append([]func() error{f.Close}, in.closers...)
	return in, nil
}

// Wrap decodes r with the given compression and applies BOM skipping and
// UTF-8 sanitizing. Closing the returned Input does not close r.
func Wrap(r io.Reader, c Compression) (*Input, error) {
	in := &Input{}

	dec, closeDec, err := decompress(r, c)
	if err != nil {
		return nil, err
	}
	if closeDec != nil {
		in.closers = append(in.closers, closeDec)
	}

	unmarked, err := skipBOM(dec)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("check byte order mark: %w", err)
	}

	in.counter = NewCounter(NewSanitizer(unmarked))
	in.Reader = in.counter
	return in, nil
}

func decompress(r io.Reader, c Compression) (io.Reader, func() error, error) {
	switch c {
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return gz, gz.Close, nil
	case Bzip2:
		return bzip2.NewReader(r), nil, nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("create zstd reader: %w", err)
		}
		return dec, func() error {
			dec.Close()
			return nil
		}, nil
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("create xz reader: %w", err)
		}
		return xr, nil, nil
	default:
		return r, nil, nil
	}
}
