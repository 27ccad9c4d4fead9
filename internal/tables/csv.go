package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Table is a parsed delimited file.
type Table struct {
	Header []string
	Rows   []*Row
}

// ReadFile parses the CSV file at path. Rows shorter than the header are
// padded with empty values; rows longer than the header are rejected.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Read parses CSV content from r.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	t := &Table{Header: header}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) > len(header) {
			return nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(record), len(header))
		}

		row := NewRow()
		for i, field := range header {
			value := ""
			if i < len(record) {
				value = record[i]
			}
			row.Set(field, value)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Union returns every field appearing in rows, in first-seen order.
func Union(rows []*Row) []string {
	seen := make(map[string]bool)
	var header []string
	for _, r := range rows {
		for _, f := range r.fields {
			if !seen[f] {
				seen[f] = true
				header = append(header, f)
			}
		}
	}
	return header
}

// Write writes rows to w under header. Fields a row lacks are written empty.
func Write(w io.Writer, header []string, rows []*Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, len(header))
	for i, r := range rows {
		for j, field := range header {
			record[j] = r.Value(field)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes rows to path under header, creating parent directories
// as needed. A nil header is derived from Union(rows).
func WriteFile(path string, header []string, rows []*Row) error {
	if header == nil {
		header = Union(rows)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}

	if err := Write(f, header, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
