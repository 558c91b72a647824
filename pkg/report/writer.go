package report

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/validate"
)

// Writer outputs JSONL records for validation runs.
//
// Implementations must be safe for concurrent use from multiple
// goroutines. Each Write* method emits a complete record as a single
// line of JSON followed by a newline.
type Writer interface {
	// WriteFinding emits a finding record.
	WriteFinding(ctx context.Context, f *FindingRecord) error

	// WriteSummary emits a summary record.
	WriteSummary(ctx context.Context, sum *SummaryRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using a
// mutex to ensure atomic line writes (no interleaved output).
type JSONLWriter struct {
	w         io.Writer
	sessionID string
	mu        sync.Mutex

	// closed indicates the writer has been closed.
	closed bool
}

// NewJSONLWriter creates a new JSONL writer.
//
// Parameters:
//   - w: The underlying writer (stdout, file, etc.)
//   - sessionID: Correlation ID for this validation run
func NewJSONLWriter(w io.Writer, sessionID string) *JSONLWriter {
	return &JSONLWriter{
		w:         w,
		sessionID: sessionID,
	}
}

// WriteFinding emits a finding record.
func (jw *JSONLWriter) WriteFinding(ctx context.Context, f *FindingRecord) error {
	return jw.writeRecord(ctx, TypeFinding, f)
}

// WriteSummary emits a summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

// Close marks the writer as closed.
//
// If the underlying writer implements io.Closer, it is NOT closed.
// The caller is responsible for closing the underlying writer.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data and writes a complete record line.
//
// Holds the mutex for the whole operation so lines are never
// interleaved.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Marshal the payload outside the lock.
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := Record{
		Type:      recordType,
		TS:        time.Now().UTC(),
		SessionID: jw.sessionID,
		Data:      dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// io.Writer.Write may return n < len(p) with a nil error; a short
	// write would truncate a JSONL line, so loop until done.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}

	return nil
}

// writeAll writes all bytes to w, handling short writes.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// WriteErrors emits one finding record per cell-level message in errs,
// in deterministic order (entity, row, field).
func WriteErrors(ctx context.Context, w Writer, errs validate.Errors) error {
	for _, kind := range entity.Kinds() {
		rows, ok := errs[kind]
		if !ok {
			continue
		}

		indices := make([]int, 0, len(rows))
		for i := range rows {
			indices = append(indices, i)
		}
		sort.Ints(indices)

		for _, i := range indices {
			fields := make([]string, 0, len(rows[i]))
			for f := range rows[i] {
				fields = append(fields, f)
			}
			sort.Strings(fields)

			for _, f := range fields {
				rec := &FindingRecord{
					Entity:   string(kind),
					RowIndex: i,
					Field:    f,
					Message:  rows[i][f],
				}
				if err := w.WriteFinding(ctx, rec); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Summarize builds a summary record from datasets and their findings.
func Summarize(datasets map[entity.Kind]*entity.Dataset, errs validate.Errors, elapsed time.Duration) *SummaryRecord {
	sum := &SummaryRecord{
		RowsByEntity:     map[string]int{},
		FindingsByEntity: map[string]int{},
		Duration:         elapsed,
		DurationHuman:    elapsed.String(),
	}
	for kind, ds := range datasets {
		if ds == nil {
			continue
		}
		sum.RowsByEntity[string(kind)] = ds.Len()
		sum.RowsValidated += ds.Len()
	}
	for kind, rows := range errs {
		n := 0
		for _, fields := range rows {
			n += len(fields)
		}
		sum.FindingsByEntity[string(kind)] = n
		sum.Findings += n
	}
	sum.Clean = sum.Findings == 0
	return sum
}

// Compile-time check that JSONLWriter implements Writer.
var _ Writer = (*JSONLWriter)(nil)
