package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Supported formats for New.
const (
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
)

// Writer handles streaming NDJSON output to a file or io.Writer.
type Writer struct {
	mu        sync.Mutex
	output    io.Writer
	encoder   *json.Encoder
	count     int
	closeFunc func() error
}

// NewWriter creates a new NDJSON writer that writes to the specified output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		output:  w,
		encoder: json.NewEncoder(w),
	}
}

// NewFileWriter creates a new NDJSON writer that writes to a file.
// The caller must call Close() when done to ensure the file is properly closed.
func NewFileWriter(filename string) (*Writer, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}

	return &Writer{
		output:    file,
		encoder:   json.NewEncoder(file),
		closeFunc: file.Close,
	}, nil
}

// Write writes a single record as one NDJSON line.
func (w *Writer) Write(record interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.encoder.Encode(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close closes the underlying writer if it's a file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closeFunc != nil {
		err := w.closeFunc()
		w.closeFunc = nil
		return err
	}
	return nil
}

// New opens path in the format implied by format, or by the file extension
// when format is empty. An empty path streams NDJSON to stdout.
func New(path, format string) (OutputWriter, error) {
	if path == "" {
		return NewWriter(os.Stdout), nil
	}
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	switch format {
	case FormatJSON:
		return NewJSONFileWriter(path)
	case FormatNDJSON, "jsonl":
		return NewFileWriter(path)
	default:
		return nil, fmt.Errorf("unsupported output format %q (use json or ndjson)", format)
	}
}

// DatedName returns prefix-YYYY-MM-DD.ext, the naming used for dated exports.
func DatedName(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", prefix, now.Format("2006-01-02"), strings.TrimPrefix(ext, "."))
}

func createFile(filename string) (*os.File, error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, nil
}

// WriteFile writes data to filename, creating parent directories.
func WriteFile(filename string, data []byte) error {
	file, err := createFile(filename)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return file.Close()
}
