// Package compression provides streaming readers and writers for gzip and
// zstd compressed edge lists and result files.
package compression

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Type represents the compression algorithm used.
type Type uint8

const (
	// TypeNone represents no compression
	TypeNone Type = iota
	// TypeGzip uses gzip compression
	TypeGzip
	// TypeZstd uses zstd compression
	TypeZstd
)

// String returns the algorithm name.
func (t Type) String() string {
	switch t {
	case TypeGzip:
		return "gzip"
	case TypeZstd:
		return "zstd"
	default:
		return "none"
	}
}

// Extension returns the conventional file suffix, including the dot.
func (t Type) Extension() string {
	switch t {
	case TypeGzip:
		return ".gz"
	case TypeZstd:
		return ".zst"
	default:
		return ""
	}
}

// ParseType parses "gzip", "zstd" or "none".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TypeNone, nil
	case "gzip", "gz":
		return TypeGzip, nil
	case "zstd", "zst":
		return TypeZstd, nil
	default:
		return TypeNone, fmt.Errorf("unknown compression type: %q", s)
	}
}

// TypeFromPath guesses the compression from a file extension.
func TypeFromPath(path string) Type {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return TypeGzip
	case ".zst", ".zstd":
		return TypeZstd
	default:
		return TypeNone
	}
}

// Level represents the compression level.
type Level int

const (
	// LevelFastest prioritizes speed over compression ratio
	LevelFastest Level = 1
	// LevelDefault balances speed and compression ratio
	LevelDefault Level = 3
	// LevelBest prioritizes compression ratio over speed
	LevelBest Level = 9
)

// ============================================================================
// Detection
// ============================================================================

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

// DetectType detects the compression type from leading magic bytes.
func DetectType(header []byte) Type {
	if bytes.HasPrefix(header, zstdMagic) {
		return TypeZstd
	}
	if bytes.HasPrefix(header, gzipMagic) {
		return TypeGzip
	}
	return TypeNone
}

// ============================================================================
// Readers
// ============================================================================

type readCloser struct {
	io.Reader
	close func() error
}

func (r *readCloser) Close() error {
	return r.close()
}

// NewReader returns a reader that transparently decompresses r when it
// starts with a gzip or zstd header. Plain input is passed through.
// Closing the returned reader does not close r.
func NewReader(r io.Reader) (io.ReadCloser, Type, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	header, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, TypeNone, fmt.Errorf("failed to read header: %w", err)
	}

	switch t := DetectType(header); t {
	case TypeZstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, t, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return &readCloser{Reader: dec, close: func() error { dec.Close(); return nil }}, t, nil
	case TypeGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, t, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, t, nil
	default:
		return &readCloser{Reader: br, close: func() error { return nil }}, TypeNone, nil
	}
}

// ============================================================================
// Writers
// ============================================================================

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w with the requested compression. Close flushes the
// compressed stream but does not close w.
func NewWriter(w io.Writer, t Type, level Level) (io.WriteCloser, error) {
	switch t {
	case TypeNone:
		return nopWriteCloser{w}, nil
	case TypeGzip:
		gzLevel := gzip.DefaultCompression
		switch level {
		case LevelFastest:
			gzLevel = gzip.BestSpeed
		case LevelBest:
			gzLevel = gzip.BestCompression
		}
		gz, err := gzip.NewWriterLevel(w, gzLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		return gz, nil
	case TypeZstd:
		zLevel := zstd.SpeedDefault
		switch level {
		case LevelFastest:
			zLevel = zstd.SpeedFastest
		case LevelBest:
			zLevel = zstd.SpeedBestCompression
		}
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zLevel))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("unknown compression type: %d", t)
	}
}
