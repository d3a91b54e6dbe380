package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"sync"
)

// CSVWriter writes a header row followed by one row per record. Records
// must be []string or implement Rower.
type CSVWriter struct {
	mu        sync.Mutex
	csv       *csv.Writer
	columns   int
	count     int
	closeFunc func() error
}

// NewCSVWriter writes header immediately.
func NewCSVWriter(w io.Writer, header []string) (*CSVWriter, error) {
	cw := &CSVWriter{csv: csv.NewWriter(w), columns: len(header)}
	if err := cw.csv.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	return cw, nil
}

// NewCSVFileWriter creates filename and writes header to it.
func NewCSVFileWriter(filename string, header []string) (*CSVWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	cw, err := NewCSVWriter(file, header)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	cw.closeFunc = file.Close
	return cw, nil
}

// Write appends one row.
func (w *CSVWriter) Write(record interface{}) error {
	var row []string
	switch r := record.(type) {
	case []string:
		row = r
	case Rower:
		row = r.CSVRow()
	default:
		return fmt.Errorf("cannot write %T as a CSV row", record)
	}
	if len(row) != w.columns {
		return fmt.Errorf("CSV row has %d fields, header has %d", len(row), w.columns)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of data rows written.
func (w *CSVWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes buffered rows and closes the file.
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.csv.Flush()
	flushErr := w.csv.Error()
	if w.closeFunc != nil {
		err := w.closeFunc()
		w.closeFunc = nil
		if err != nil {
			return err
		}
	}
	return flushErr
}
