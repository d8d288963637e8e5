package dataprocessing

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadCSV reads a comma-delimited contact export with a header row.
// A missing file yields KindNotFound; anything that cannot be read as a
// rectangular UTF-8 table yields KindMalformed.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewError(KindNotFound, "load", path, err)
		}
		return nil, NewError(KindUnexpected, "load", path, err)
	}
	defer f.Close()

	t, err := ParseCSV(f)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			pe.Path = path
			return nil, pe
		}
		return nil, NewError(KindMalformed, "load", path, err)
	}
	return t, nil
}

// ParseCSV parses CSV content into a Table. Empty fields and the usual NA
// markers become missing cells.
func ParseCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = 0
	// Exports carry bare quotes inside unquoted fields (O"Brien).
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, NewError(KindMalformed, "parse", "", fmt.Errorf("no header row"))
	}
	if err != nil {
		return nil, NewError(KindMalformed, "parse", "", fmt.Errorf("header: %w", err))
	}
	if err := checkUTF8(header, 1); err != nil {
		return nil, NewError(KindMalformed, "parse", "", err)
	}

	var rows [][]Cell
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, NewError(KindMalformed, "parse", "", err)
		}
		if err := checkUTF8(rec, line); err != nil {
			return nil, NewError(KindMalformed, "parse", "", err)
		}
		row := make([]Cell, len(rec))
		for i, field := range rec {
			row[i] = parseField(field)
		}
		rows = append(rows, row)
	}

	return NewTable(header, rows), nil
}

func parseField(field string) Cell {
	if _, ok := missingMarkers[field]; ok {
		return Missing()
	}
	return Text(field)
}

func checkUTF8(rec []string, record int) error {
	for i, field := range rec {
		if !utf8.ValidString(field) {
			return fmt.Errorf("record %d, field %d: invalid UTF-8", record, i+1)
		}
	}
	return nil
}
