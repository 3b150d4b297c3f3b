package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter buffers items and emits them as one indented JSON value.
// A single item is emitted bare, multiple items as an array.
type JSONWriter struct {
	w     *bufio.Writer
	items []any
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: bufio.NewWriter(w)}
}

// Write buffers a single item.
func (w *JSONWriter) Write(data any) error {
	w.items = append(w.items, data)
	return nil
}

// Flush writes the buffered items.
func (w *JSONWriter) Flush() error {
	var value any = w.items
	if len(w.items) == 1 {
		value = w.items[0]
	}

	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	if _, err := w.w.Write(out); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// JSONLWriter writes newline-delimited JSON. Each Write emits and
// flushes one line, so benchmark progress is observable while a run is
// still going.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w)}
}

// Write writes a single item as a JSON line.
func (w *JSONLWriter) Write(data any) error {
	out, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(out); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}
