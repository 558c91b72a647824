// Package workspace owns the live application state: the three entity
// datasets, the merged error map, pending suggestion proposals, and the
// AI-confirmed markers, behind one coordinating type.
//
// All state lives behind a single mutex. The error map's
// delete-when-empty reconciliation is a read-modify-write that must not
// interleave, so every mutation entry point (edit, accept, reject, bulk
// fix, dataset replace) runs to completion under the lock before the
// next is admitted.
package workspace

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/normalize"
	"github.com/gridwright/gridwright/pkg/validate"
)

// Workspace is the shared mutable store for one editing session.
type Workspace struct {
	mu       sync.Mutex
	logger   *zap.Logger
	recorder Recorder
	debounce time.Duration

	datasets  map[entity.Kind]*entity.Dataset
	errs      validate.Errors
	pending   map[entity.Kind]*Proposal
	confirmed map[entity.Kind]map[int]map[string]bool

	timers   map[timerKey]*rowTimer
	timerGen uint64
	closed   bool
}

type timerKey struct {
	kind entity.Kind
	row  int
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(w *Workspace) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets the quiescence delay for per-row re-validation after
// a cell edit. Zero (the default) validates synchronously, which is what
// CLI and test callers want; the server configures a few hundred
// milliseconds so a burst of keystroke edits to one row validates once.
func WithDebounce(d time.Duration) Option {
	return func(w *Workspace) { w.debounce = d }
}

// WithRecorder attaches an audit recorder for applied changes. Recorder
// failures are logged and never block the edit path.
func WithRecorder(r Recorder) Option {
	return func(w *Workspace) { w.recorder = r }
}

// New creates an empty workspace.
func New(opts ...Option) *Workspace {
	w := &Workspace{
		logger:    zap.NewNop(),
		datasets:  map[entity.Kind]*entity.Dataset{},
		errs:      validate.Errors{},
		pending:   map[entity.Kind]*Proposal{},
		confirmed: map[entity.Kind]map[int]map[string]bool{},
		timers:    map[timerKey]*rowTimer{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Close stops all pending re-validation timers. The workspace must not
// be used afterwards.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for k, rt := range w.timers {
		rt.timer.Stop()
		delete(w.timers, k)
	}
}

// ReplaceDataset installs a new raw dataset for kind, replacing any
// previous one wholesale, then runs a full validation pass over all
// three datasets (cross-entity errors on sibling entities may change).
// Rows are normalized on the way in; order and count are preserved.
func (w *Workspace) ReplaceDataset(kind entity.Kind, rows []entity.Row) error {
	if _, err := entity.ParseKind(string(kind)); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.cancelTimersLocked(kind)
	w.datasets[kind] = entity.NewDataset(kind, normalize.Dataset(kind, rows))
	delete(w.pending, kind)
	delete(w.confirmed, kind)
	w.validateAllLocked()

	w.recordLocked(ChangeEvent{
		Source: SourceUpload,
		Entity: kind,
		Value:  fmt.Sprintf("%d rows", len(rows)),
	})
	w.logger.Info("dataset replaced",
		zap.String("entity", string(kind)),
		zap.Int("rows", len(rows)))
	return nil
}

// Dataset returns a copy of the current dataset for kind, or nil if none
// has been uploaded.
func (w *Workspace) Dataset(kind entity.Kind) *entity.Dataset {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.datasets[kind].Clone()
}

// Errors returns a deep copy of the current error map.
func (w *Workspace) Errors() validate.Errors {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errs.Clone()
}

// Ready reports whether all three entity kinds have at least one
// uploaded row. A missing or empty dataset is a valid state, just not a
// ready one.
func (w *Workspace) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, kind := range entity.Kinds() {
		if w.datasets[kind].Len() == 0 {
			return false
		}
	}
	return true
}

// UpdateCell applies one manual cell edit: the value is merged into the
// row's current state, the row is re-normalized, and re-validation is
// scheduled (debounced when configured). A manual edit clears any
// AI-confirmed marker on the cell, since the value no longer originates
// from an accepted suggestion.
func (w *Workspace) UpdateCell(kind entity.Kind, index int, field string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	row, err := w.rowLocked(kind, index)
	if err != nil {
		return err
	}
	row[field] = value
	w.datasets[kind].Rows[index] = normalize.Row(kind, row)
	w.unmarkConfirmedLocked(kind, index, field)

	w.recordLocked(ChangeEvent{
		Source:   SourceManual,
		Entity:   kind,
		RowIndex: index,
		Field:    field,
		Value:    value,
	})

	w.scheduleRevalidateLocked(kind, index)
	return nil
}

// ValidateAll recomputes the full error map from current state and
// replaces it wholesale.
func (w *Workspace) ValidateAll() validate.Errors {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.validateAllLocked()
	return w.errs.Clone()
}

// ValidateRowNow re-validates a single row immediately, bypassing any
// pending debounce timer for it.
func (w *Workspace) ValidateRowNow(kind entity.Kind, index int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelTimerLocked(timerKey{kind: kind, row: index})
	w.revalidateRowLocked(kind, index)
}

// rowLocked fetches a row for mutation, bounds-checked. Out-of-range
// indexes are caller errors and surface as errors, not validation
// output.
func (w *Workspace) rowLocked(kind entity.Kind, index int) (entity.Row, error) {
	ds := w.datasets[kind]
	if ds == nil {
		return nil, fmt.Errorf("no %s dataset uploaded", kind)
	}
	if index < 0 || index >= len(ds.Rows) {
		return nil, fmt.Errorf("row %d out of range for %s (%d rows)", index, kind, len(ds.Rows))
	}
	if ds.Rows[index] == nil {
		ds.Rows[index] = entity.Row{}
	}
	return ds.Rows[index], nil
}

// datasetsLocked exposes current rows to the validators. The validators
// only read, so no copies are taken.
func (w *Workspace) datasetsLocked() validate.Datasets {
	var d validate.Datasets
	if ds := w.datasets[entity.Clients]; ds != nil {
		d.Clients = ds.Rows
	}
	if ds := w.datasets[entity.Workers]; ds != nil {
		d.Workers = ds.Rows
	}
	if ds := w.datasets[entity.Tasks]; ds != nil {
		d.Tasks = ds.Rows
	}
	return d
}

func (w *Workspace) validateAllLocked() {
	w.errs = validate.All(w.datasetsLocked())
}

func (w *Workspace) revalidateRowLocked(kind entity.Kind, index int) {
	cells := validate.RowAt(kind, index, w.datasetsLocked())
	w.updateRowLocked(kind, index, cells)
}

// updateRowLocked is the error-map reconciler for one row. The row's
// entry is replaced wholesale so a field error that no longer recurs
// disappears; an empty result deletes the row entry, and the last row
// clearing deletes the entity key. Absence means clean.
func (w *Workspace) updateRowLocked(kind entity.Kind, index int, cells validate.CellErrors) {
	rows, ok := w.errs[kind]
	if len(cells) == 0 {
		if !ok {
			return
		}
		delete(rows, index)
		if len(rows) == 0 {
			delete(w.errs, kind)
		}
		return
	}
	if !ok {
		rows = validate.RowErrors{}
		w.errs[kind] = rows
	}
	rows[index] = cells
}

// batchUpdateRowsLocked applies updateRow semantics for a set of rows in
// one critical section, so observers never see a half-applied batch.
func (w *Workspace) batchUpdateRowsLocked(kind entity.Kind, indexes []int) {
	for _, index := range indexes {
		w.revalidateRowLocked(kind, index)
	}
}

func (w *Workspace) unmarkConfirmedLocked(kind entity.Kind, index int, field string) {
	rows, ok := w.confirmed[kind]
	if !ok {
		return
	}
	fields, ok := rows[index]
	if !ok {
		return
	}
	delete(fields, field)
	if len(fields) == 0 {
		delete(rows, index)
	}
	if len(rows) == 0 {
		delete(w.confirmed, kind)
	}
}

func (w *Workspace) markConfirmedLocked(kind entity.Kind, index int, field string) {
	rows, ok := w.confirmed[kind]
	if !ok {
		rows = map[int]map[string]bool{}
		w.confirmed[kind] = rows
	}
	fields, ok := rows[index]
	if !ok {
		fields = map[string]bool{}
		rows[index] = fields
	}
	fields[field] = true
}

// Confirmed returns a copy of the AI-confirmed markers for kind:
// row index -> field -> true for every cell whose current value came
// from an accepted suggestion. Audit/highlight only; no validation
// semantics.
func (w *Workspace) Confirmed(kind entity.Kind) map[int]map[string]bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := map[int]map[string]bool{}
	for index, fields := range w.confirmed[kind] {
		fc := make(map[string]bool, len(fields))
		for f := range fields {
			fc[f] = true
		}
		out[index] = fc
	}
	return out
}

// IsConfirmed reports whether one cell carries the AI-confirmed marker.
func (w *Workspace) IsConfirmed(kind entity.Kind, index int, field string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.confirmed[kind][index][field]
}
