// internal/output/csv.go
package output

import (
	"encoding/csv"
	"fmt"
	"os"
)

// CSVWriter writes run records as CSV. The header is taken from the first
// batch; later batches are written under the same columns.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	fields []string
}

// NewCSVWriter creates a new CSV writer
func NewCSVWriter(filename string) (*CSVWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{file: file, writer: csv.NewWriter(file)}, nil
}

// Write appends one line per record, preceded by the header on the first call
func (w *CSVWriter) Write(data []map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}

	if w.fields == nil {
		w.fields = columns(data)
		if err := w.writer.Write(w.fields); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	line := make([]string, len(w.fields))
	for n, row := range data {
		for i, field := range w.fields {
			line[i] = stringValue(row[field])
		}
		if err := w.writer.Write(line); err != nil {
			return fmt.Errorf("failed to write CSV record %d: %w", n, err)
		}
	}

	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes pending lines and closes the file
func (w *CSVWriter) Close() error {
	if w.file == nil {
		return nil
	}
	w.writer.Flush()
	flushErr := w.writer.Error()
	err := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return flushErr
	}
	return err
}
