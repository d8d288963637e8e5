package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"contactcli/internal/dataprocessing"
)

// DefaultSheet is the worksheet name used for exported contact lists.
const DefaultSheet = "Sheet1"

// XLSXWriter writes cleaned tables as Excel workbooks.
type XLSXWriter struct {
	sheet string
}

// NewXLSXWriter creates an xlsx writer using DefaultSheet.
func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{sheet: DefaultSheet}
}

// Format implements dataprocessing.TableWriter
func (w *XLSXWriter) Format() string {
	return "xlsx"
}

// Write saves t to path as a single-sheet workbook: a header row followed by
// one text row per contact.
func (w *XLSXWriter) Write(t *dataprocessing.Table, path string) error {
	slog.Debug("writing xlsx file",
		slog.String("file_path", path),
		slog.Int("record_count", t.Len()),
		slog.Int("column_count", t.Width()))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(w.sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	if err := sw.SetRow("A1", toRow(t.Columns())); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, rec := range t.Records() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		if err := sw.SetRow(cell, toRow(rec)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

// ReadXLSX reads the first sheet of a workbook back as header and records.
func ReadXLSX(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	header := rows[0]
	records := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make([]string, len(header))
		copy(rec, row)
		records = append(records, rec)
	}
	return header, records, nil
}
