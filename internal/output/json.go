// internal/output/json.go
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JSONWriter writes data in JSON format
type JSONWriter struct {
	filename string
	file     *os.File
}

// NewJSONWriter creates a new JSON writer
func NewJSONWriter(filename string) (*JSONWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}

	return &JSONWriter{
		filename: filename,
		file:     file,
	}, nil
}

// Write writes data to JSON file
func (w *JSONWriter) Write(data []map[string]interface{}) error {
	if data == nil {
		data = []map[string]interface{}{}
	}
	encoder := json.NewEncoder(w.file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Close closes the JSON writer
func (w *JSONWriter) Close() error {
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}

// createFile creates filename and its parent directories
func createFile(filename string) (*os.File, error) {
	if filename == "" {
		return nil, fmt.Errorf("output file is required")
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return os.Create(filename)
}
