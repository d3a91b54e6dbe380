package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// JSONWriter streams records into a single indented JSON array.
type JSONWriter struct {
	mu        sync.Mutex
	output    io.Writer
	count     int
	closed    bool
	closeFunc func() error
}

// NewJSONWriter writes a JSON array to w. Nothing is emitted until the
// first Write or Close.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{output: w}
}

// NewJSONFileWriter creates filename and writes a JSON array to it.
func NewJSONFileWriter(filename string) (*JSONWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{output: file, closeFunc: file.Close}, nil
}

// Write appends one element to the array.
func (w *JSONWriter) Write(record interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("write after close")
	}

	data, err := json.MarshalIndent(record, "  ", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	var buf bytes.Buffer
	if w.count == 0 {
		buf.WriteString("[\n  ")
	} else {
		buf.WriteString(",\n  ")
	}
	buf.Write(data)

	if _, err := w.output.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of elements written.
func (w *JSONWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close terminates the array and closes the file.
func (w *JSONWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	tail := "\n]\n"
	if w.count == 0 {
		tail = "[]\n"
	}
	_, werr := io.WriteString(w.output, tail)

	if w.closeFunc != nil {
		if err := w.closeFunc(); err != nil {
			return err
		}
	}
	if werr != nil {
		return fmt.Errorf("failed to finish JSON document: %w", werr)
	}
	return nil
}

// WriteDocument writes v as one indented JSON document to filename.
func WriteDocument(filename string, v interface{}) error {
	file, err := createFile(filename)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return file.Close()
}
