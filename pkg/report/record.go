// Package report provides JSONL output for validation runs.
//
// Output is structured as typed record envelopes containing findings and
// summaries. Each line is a self-contained JSON object that can be
// parsed independently.
package report

import (
	"errors"
	"encoding/json"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: gridwright.<type>.v<version>
const (
	// TypeFinding identifies validation finding records.
	TypeFinding = "gridwright.finding.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "gridwright.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific
// payload in the Data field. The type field determines how to interpret
// the Data payload.
type Record struct {
	// Type identifies the record type (e.g., "gridwright.finding.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// SessionID is the correlation ID for this validation run.
	SessionID string `json:"session_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// FindingRecord is the data payload for a single validation finding:
// one cell-level message in one entity table.
type FindingRecord struct {
	// Entity is the entity kind the finding belongs to.
	Entity string `json:"entity"`

	// RowIndex is the zero-based row position in the uploaded table.
	RowIndex int `json:"row_index"`

	// Field is the column the finding is attached to.
	Field string `json:"field"`

	// Message is the human-readable finding text.
	Message string `json:"message"`

	// Source is the file the row came from, if known.
	Source string `json:"source,omitempty"`
}

// SummaryRecord is the data payload for final summaries.
//
// A summary record is emitted at the end of a validation run with
// aggregate statistics.
type SummaryRecord struct {
	// RowsValidated is the total number of rows across all entities.
	RowsValidated int `json:"rows_validated"`

	// RowsByEntity breaks the row count down per entity kind.
	RowsByEntity map[string]int `json:"rows_by_entity,omitempty"`

	// Findings is the total number of cell-level findings.
	Findings int `json:"findings"`

	// FindingsByEntity breaks the finding count down per entity kind.
	FindingsByEntity map[string]int `json:"findings_by_entity,omitempty"`

	// Clean reports whether the run produced no findings.
	Clean bool `json:"clean"`

	// Duration is the total validation duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "report: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
