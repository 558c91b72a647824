// Package export writes validated datasets back out as CSV or XLSX, and
// the captured ruleset as rules.json.
//
// Cell values are flattened for spreadsheet output: lists are joined with
// ", ", nested objects are JSON-stringified, and everything else is
// rendered as text. Flattening is presentation only; it never feeds back
// into the data path.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/rules"
)

// Format selects the spreadsheet output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown export format: %q (want csv or xlsx)", s)
}

// FlattenValue renders one cell value as spreadsheet text.
func FlattenValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case entity.Invalid:
		// Export what the user typed, not the sentinel.
		return val.Raw
	case []string:
		return strings.Join(val, ", ")
	case []int:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ", ")
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	}

	// Remaining composites (maps, []any) stringify as JSON.
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// columnsFor returns the output column order: the dataset's canonical
// columns first, then any extra keys found on rows, sorted.
func columnsFor(ds *entity.Dataset) []string {
	cols := append([]string(nil), ds.Columns...)
	known := map[string]bool{}
	for _, c := range cols {
		known[c] = true
	}

	var extras []string
	for _, row := range ds.Rows {
		for k := range row {
			if !known[k] {
				known[k] = true
				extras = append(extras, k)
			}
		}
	}
	sort.Strings(extras)
	return append(cols, extras...)
}

// flattenRows renders the dataset as a header record plus one record per
// row, in dataset order.
func flattenRows(ds *entity.Dataset) [][]string {
	cols := columnsFor(ds)
	out := make([][]string, 0, len(ds.Rows)+1)
	out = append(out, cols)
	for _, row := range ds.Rows {
		record := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := row[c]; ok {
				record[i] = FlattenValue(v)
			}
		}
		out = append(out, record)
	}
	return out
}

// WriteRules writes the ruleset (including prioritization weights) as
// indented JSON.
func WriteRules(w io.Writer, rs *rules.Ruleset) error {
	b, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ruleset: %w", err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write ruleset: %w", err)
	}
	return nil
}

// WriteDataset writes one dataset to path; the format is chosen by the
// path's extension via ParseFormat semantics (.csv or .xlsx).
func WriteDataset(path string, ds *entity.Dataset) error {
	format, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	switch format {
	case FormatCSV:
		err = WriteCSV(f, ds)
	case FormatXLSX:
		err = WriteXLSX(f, ds)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// Bundle writes every present dataset plus rules.json into dir, naming
// files <kind>_export.<ext>. Returns the written paths in a stable order.
func Bundle(dir string, format Format, datasets map[entity.Kind]*entity.Dataset, rs *rules.Ruleset) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	var written []string
	for _, kind := range entity.Kinds() {
		ds, ok := datasets[kind]
		if !ok || ds == nil {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_export.%s", kind, format))
		if err := WriteDataset(path, ds); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if rs != nil {
		path := filepath.Join(dir, "rules.json")
		f, err := os.Create(path)
		if err != nil {
			return written, fmt.Errorf("create rules.json: %w", err)
		}
		if err := WriteRules(f, rs); err != nil {
			f.Close()
			return written, err
		}
		if err := f.Close(); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}
