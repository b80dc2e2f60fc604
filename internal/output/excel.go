// internal/output/excel.go
package output

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the worksheet run results are written to
const DefaultSheetName = "Runs"

// ExcelWriter writes rows to a single worksheet; the workbook is saved on Close
type ExcelWriter struct {
	filename  string
	file      *excelize.File
	sheetName string
	row       int
}

// NewExcelWriter creates a new Excel writer
func NewExcelWriter(filename string) (*ExcelWriter, error) {
	if filename == "" {
		return nil, fmt.Errorf("Excel file path is required")
	}

	file := excelize.NewFile()
	if defaultSheet := file.GetSheetName(0); defaultSheet != DefaultSheetName {
		if err := file.SetSheetName(defaultSheet, DefaultSheetName); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to name worksheet: %w", err)
		}
	}

	return &ExcelWriter{
		filename:  filename,
		file:      file,
		sheetName: DefaultSheetName,
		row:       1,
	}, nil
}

// Write appends a styled header row and one row per record
func (w *ExcelWriter) Write(data []map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}

	headers := columns(data)
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, w.row)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	if err := w.applyHeaderStyle(len(headers)); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	w.row++

	for _, record := range data {
		for i, header := range headers {
			cell, err := excelize.CoordinatesToCellName(i+1, w.row)
			if err != nil {
				return err
			}
			if err := w.file.SetCellValue(w.sheetName, cell, cellValue(record[header])); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
		w.row++
	}

	return nil
}

func cellValue(v interface{}) interface{} {
	switch v.(type) {
	case nil:
		return ""
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool, string:
		return v
	default:
		return stringValue(v)
	}
}

// applyHeaderStyle applies styling to the header cells of the current row
func (w *ExcelWriter) applyHeaderStyle(count int) error {
	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 12,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E0E0E0"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}

	first, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(count, w.row)
	if err != nil {
		return err
	}
	return w.file.SetCellStyle(w.sheetName, first, last, style)
}

// Close saves the workbook
func (w *ExcelWriter) Close() error {
	if w.file == nil {
		return nil
	}
	defer func() {
		w.file.Close()
		w.file = nil
	}()

	out, err := createFile(w.filename)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := w.file.WriteTo(out); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
