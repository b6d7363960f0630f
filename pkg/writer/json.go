// Package writer encodes typed values as JSON, optionally compressed.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/graph-analysis/pkg/compression"
)

// JSONWriter writes data as JSON.
type JSONWriter[T any] struct {
	// Indent specifies the indentation for pretty printing.
	// Empty string means compact output.
	Indent string
	// Compression wraps the encoded stream. TypeNone writes plain JSON.
	Compression compression.Type
	Level       compression.Level
}

// NewJSONWriter creates a new JSON writer with compact, uncompressed output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Level: compression.LevelDefault}
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  ", Level: compression.LevelDefault}
}

// NewCompressedJSONWriter creates a compact JSON writer compressed with t.
func NewCompressedJSONWriter[T any](t compression.Type) *JSONWriter[T] {
	return &JSONWriter[T]{Compression: t, Level: compression.LevelDefault}
}

// Write writes the data as JSON to the writer. The compressed stream is
// flushed, w itself is not closed.
func (w *JSONWriter[T]) Write(data T, writer io.Writer) error {
	_, err := w.write(data, writer)
	return err
}

func (w *JSONWriter[T]) write(data T, writer io.Writer) (int64, error) {
	zw, err := compression.NewWriter(writer, w.Compression, w.Level)
	if err != nil {
		return 0, err
	}

	counter := &countingWriter{w: zw}
	encoder := json.NewEncoder(counter)
	if w.Indent != "" {
		encoder.SetIndent("", w.Indent)
	}
	if err := encoder.Encode(data); err != nil {
		zw.Close()
		return counter.n, fmt.Errorf("failed to encode data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return counter.n, fmt.Errorf("failed to flush %s stream: %w", w.Compression, err)
	}
	return counter.n, nil
}

// WriteToFile writes the data as JSON to a file.
func (w *JSONWriter[T]) WriteToFile(data T, filepath string) error {
	_, err := w.WriteToFileWithStats(data, filepath)
	return err
}

// WriteResult contains statistics about the written file.
type WriteResult struct {
	JSONSize       int64
	CompressedSize int64
	CompressionPct float64
}

// WriteToFileWithStats writes and returns statistics about the output.
func (w *JSONWriter[T]) WriteToFileWithStats(data T, filepath string) (*WriteResult, error) {
	file, err := os.Create(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	out := &countingWriter{w: file}
	jsonSize, err := w.write(data, out)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close file: %w", closeErr)
	}
	if err != nil {
		os.Remove(filepath)
		return nil, err
	}

	result := &WriteResult{JSONSize: jsonSize, CompressedSize: out.n}
	if jsonSize > 0 {
		result.CompressionPct = float64(out.n) / float64(jsonSize) * 100
	}
	return result, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
