package testutil

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

// ExportHeader is a realistic subset of a contact export header, including
// deny-listed columns and both click-tracking columns.
var ExportHeader = []string{
	"Email address",
	"First name",
	"Company",
	"Phone - mobile",
	"Tags",
	"Clicked At",
	"Clicked Link Address",
}

// ContactCSV renders header and rows as comma-delimited text.
func ContactCSV(t testing.TB, header []string, rows ...[]string) string {
	t.Helper()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write rows: %v", err)
	}
	return buf.String()
}

// WriteFile writes content to dir/name and returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteContactCSV writes a contact export to dir/name and returns its path.
func WriteContactCSV(t testing.TB, dir, name string, header []string, rows ...[]string) string {
	t.Helper()
	return WriteFile(t, dir, name, ContactCSV(t, header, rows...))
}
