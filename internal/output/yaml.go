// internal/output/yaml.go
package output

import (
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes all rows as one YAML sequence
type YAMLWriter struct {
	file    *os.File
	encoder *yaml.Encoder
}

// NewYAMLWriter creates a new YAML writer
func NewYAMLWriter(filename string) (*YAMLWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)

	return &YAMLWriter{file: file, encoder: encoder}, nil
}

// Write writes data to the YAML file
func (w *YAMLWriter) Write(data []map[string]interface{}) error {
	if data == nil {
		data = []map[string]interface{}{}
	}
	return w.encoder.Encode(data)
}

// Close flushes the encoder and closes the file
func (w *YAMLWriter) Close() error {
	if w.file == nil {
		return nil
	}
	encErr := w.encoder.Close()
	err := w.file.Close()
	w.file = nil
	if encErr != nil {
		return encErr
	}
	return err
}
