// Package entity defines the three tabular entity kinds handled by
// gridwright (clients, workers, tasks), their canonical field schemas,
// and the row/dataset types shared by the normalization and validation
// pipeline.
//
// A Row is an untyped bag of values keyed by canonical field names. Before
// normalization the values are whatever the ingestion layer delivered
// (typically strings from spreadsheet cells); after normalization every
// field listed in the schema carries its canonical type. The typed views
// in typed.go decode normalized rows into concrete structs.
package entity

import (
	"fmt"
)

// Kind identifies one of the three entity tables. The set is closed: no
// other kinds exist and none can be registered at runtime.
type Kind string

const (
	// Clients is the client table (who requests work).
	Clients Kind = "clients"

	// Workers is the worker table (who performs work).
	Workers Kind = "workers"

	// Tasks is the task table (units of work).
	Tasks Kind = "tasks"
)

// Kinds returns all entity kinds in canonical order.
func Kinds() []Kind {
	return []Kind{Clients, Workers, Tasks}
}

// ParseKind converts a string to a Kind.
//
// Returns an error for anything outside the closed set. An unknown kind is
// a programmer or caller error, never a data error.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Clients, Workers, Tasks:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown entity kind %q (want clients, workers, or tasks)", s)
}

// Row is an ordered-by-schema mapping from field name to value.
//
// The row's position in its dataset (0-based) is its identity for all
// error and edit tracking; the index is never stored inside the row.
type Row map[string]any

// Clone returns a shallow copy of the row. Canonical values are treated as
// immutable by the pipeline, so a shallow copy is sufficient for
// copy-on-read snapshots.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Invalid is the sentinel value a malformed list or array field normalizes
// to. It is deliberately not an empty slice: an empty slice would slip
// past non-empty checks, while Invalid fails validation with a distinct
// message. Raw preserves the original cell text for diagnostics.
type Invalid struct {
	Raw string
}

func (iv Invalid) String() string {
	return fmt.Sprintf("invalid(%q)", iv.Raw)
}

// IsInvalid reports whether v is the normalization-failure sentinel.
func IsInvalid(v any) bool {
	_, ok := v.(Invalid)
	return ok
}

// Dataset is the ordered sequence of rows for one entity kind.
//
// Columns is derived from the schema at construction time, never from the
// keys of the first row, so the column set is stable even when rows have
// missing fields. Datasets are replaced wholesale on upload and mutated
// in place (same length, per-row field updates) by edits and fixes.
type Dataset struct {
	Kind    Kind
	Columns []string
	Rows    []Row
}

// NewDataset builds a dataset for kind with schema-derived columns.
// The rows slice is adopted, not copied.
func NewDataset(kind Kind, rows []Row) *Dataset {
	return &Dataset{
		Kind:    kind,
		Columns: Columns(kind),
		Rows:    rows,
	}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Row returns the row at index, or nil if out of range.
func (d *Dataset) Row(index int) Row {
	if d == nil || index < 0 || index >= len(d.Rows) {
		return nil
	}
	return d.Rows[index]
}

// Clone returns a deep-enough copy for hand-off across an API boundary:
// the row slice and each row map are copied, values are shared.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	rows := make([]Row, len(d.Rows))
	for i, r := range d.Rows {
		rows[i] = r.Clone()
	}
	cols := make([]string, len(d.Columns))
	copy(cols, d.Columns)
	return &Dataset{Kind: d.Kind, Columns: cols, Rows: rows}
}
