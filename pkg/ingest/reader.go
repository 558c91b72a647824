// Package ingest reads client, worker, and task tables from CSV and XLSX
// files into raw rows keyed by header name.
//
// Readers preserve row order and do no type coercion: every cell comes
// out as the string the file carried, ready for normalization. The first
// line (CSV) or first sheet's first row (XLSX) is the header.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gridwright/gridwright/pkg/entity"
)

// File is one ingested data file.
type File struct {
	// Path is the source path as given to ReadFile.
	Path string

	// Kind is the entity kind the rows belong to.
	Kind entity.Kind

	// Rows holds the raw rows in file order, keyed by header name.
	Rows []entity.Row
}

// ReadFile reads a CSV or XLSX file (by extension) into raw rows for the
// given entity kind.
func ReadFile(path string, kind entity.Kind) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("data file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	var rows []entity.Row
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = ReadCSV(f)
	case ".xlsx":
		rows, err = ReadXLSX(f)
	default:
		return nil, fmt.Errorf("unsupported data file extension: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &File{Path: path, Kind: kind, Rows: rows}, nil
}

// ReadCSV reads rows from CSV data. The first record is the header; empty
// lines are skipped; short records leave the missing trailing fields out
// of the row rather than erroring.
func ReadCSV(r io.Reader) ([]entity.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	// AttributesJSON cells carry bare quotes; deliver the raw string and
	// let validation judge it instead of failing the whole file.
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []entity.Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if row := recordToRow(header, record); row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// ReadXLSX reads rows from the first sheet of an XLSX workbook. The first
// row is the header.
func ReadXLSX(r io.Reader) ([]entity.Row, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	records, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []entity.Row
	for _, record := range records[1:] {
		if row := recordToRow(header, record); row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// recordToRow maps one record onto the header. Returns nil for records
// with no non-empty cells.
func recordToRow(header, record []string) entity.Row {
	row := make(entity.Row, len(header))
	empty := true
	for i, name := range header {
		if name == "" || i >= len(record) {
			continue
		}
		row[name] = record[i]
		if strings.TrimSpace(record[i]) != "" {
			empty = false
		}
	}
	if empty {
		return nil
	}
	return row
}
