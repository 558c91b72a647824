package workspace

import (
	"sort"

	"go.uber.org/zap"

	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/normalize"
)

// Proposal is a set of candidate field changes from an external
// suggestion producer, held apart from the dataset until accepted or
// rejected. Changes maps row index to field to proposed value.
type Proposal struct {
	Message string
	Changes map[int]map[string]any
}

// Clone returns a deep copy (values shared).
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	out := &Proposal{Message: p.Message, Changes: make(map[int]map[string]any, len(p.Changes))}
	for row, fields := range p.Changes {
		fc := make(map[string]any, len(fields))
		for f, v := range fields {
			fc[f] = v
		}
		out.Changes[row] = fc
	}
	return out
}

// Empty reports whether the proposal carries no changes.
func (p *Proposal) Empty() bool {
	return p == nil || len(p.Changes) == 0
}

// Propose stores a producer's proposal as the pending change set for
// kind, superseding any earlier pending proposal for the same entity.
// Nothing is applied or validated yet. A nil or empty proposal clears
// the pending set (a missing producer response is a no-op, not an
// error).
func (w *Workspace) Propose(kind entity.Kind, p *Proposal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p.Empty() {
		delete(w.pending, kind)
		return
	}
	w.pending[kind] = p.Clone()
	w.logger.Info("proposal stored",
		zap.String("entity", string(kind)),
		zap.Int("rows", len(p.Changes)))
}

// Pending returns a copy of the pending proposal for kind, or nil.
func (w *Workspace) Pending(kind entity.Kind) *Proposal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending[kind].Clone()
}

// Reject discards the pending change set for kind without touching the
// dataset or the error map.
func (w *Workspace) Reject(kind entity.Kind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, kind)
}

// AcceptAll merges every pending change for kind into the dataset's
// current rows (not a snapshot captured at proposal time: a user edit
// made while the proposal was in flight survives on untouched fields),
// re-normalizes each touched row, marks the cells AI-confirmed, then
// re-validates the touched rows in one batch. The pending set is cleared
// only after all rows are processed. Returns the number of cells
// applied.
func (w *Workspace) AcceptAll(kind entity.Kind) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.pending[kind]
	if p.Empty() {
		delete(w.pending, kind)
		return 0
	}

	applied := 0
	touched := make([]int, 0, len(p.Changes))
	for _, index := range sortedRows(p.Changes) {
		row, err := w.rowLocked(kind, index)
		if err != nil {
			// The dataset shrank since the proposal was produced.
			w.logger.Warn("skipping pending change for missing row",
				zap.String("entity", string(kind)), zap.Int("row", index))
			continue
		}
		for field, value := range p.Changes[index] {
			row[field] = value
			w.markConfirmedLocked(kind, index, field)
			w.recordLocked(ChangeEvent{
				Source:   SourceSuggestion,
				Entity:   kind,
				RowIndex: index,
				Field:    field,
				Value:    value,
			})
			applied++
		}
		w.datasets[kind].Rows[index] = normalize.Row(kind, row)
		touched = append(touched, index)
	}

	w.batchUpdateRowsLocked(kind, touched)
	delete(w.pending, kind)
	return applied
}

// AcceptCell applies a single pending (row, field) change. Only that
// pair is removed from the pending set; if the row then has no pending
// fields its entry goes too, and an emptied set clears entirely. The
// touched row re-validates immediately.
func (w *Workspace) AcceptCell(kind entity.Kind, index int, field string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.pending[kind]
	if p.Empty() {
		return false
	}
	fields, ok := p.Changes[index]
	if !ok {
		return false
	}
	value, ok := fields[field]
	if !ok {
		return false
	}

	row, err := w.rowLocked(kind, index)
	if err != nil {
		return false
	}
	row[field] = value
	w.datasets[kind].Rows[index] = normalize.Row(kind, row)
	w.markConfirmedLocked(kind, index, field)
	w.recordLocked(ChangeEvent{
		Source:   SourceSuggestion,
		Entity:   kind,
		RowIndex: index,
		Field:    field,
		Value:    value,
	})

	delete(fields, field)
	if len(fields) == 0 {
		delete(p.Changes, index)
	}
	if len(p.Changes) == 0 {
		delete(w.pending, kind)
	}

	w.revalidateRowLocked(kind, index)
	return true
}

// ApplyFixes applies a complete bulk fix map (entity -> row -> field ->
// value) from prior analysis of the error map. Unlike proposals, fixes
// apply directly, but only to cells that currently carry an active
// validation error: a stale fix for a cell the user has since corrected
// is silently skipped. Touched rows re-validate as one batch per entity.
// Returns the number of cells applied.
func (w *Workspace) ApplyFixes(fixes map[entity.Kind]map[int]map[string]any) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	applied := 0
	for _, kind := range entity.Kinds() {
		rowFixes := fixes[kind]
		if len(rowFixes) == 0 {
			continue
		}
		touched := make([]int, 0, len(rowFixes))
		for _, index := range sortedRows(rowFixes) {
			row, err := w.rowLocked(kind, index)
			if err != nil {
				continue
			}
			rowTouched := false
			for field, value := range rowFixes[index] {
				if w.errs[kind][index][field] == "" {
					continue // stale fix, cell is already clean
				}
				row[field] = value
				w.markConfirmedLocked(kind, index, field)
				w.recordLocked(ChangeEvent{
					Source:   SourceBulkFix,
					Entity:   kind,
					RowIndex: index,
					Field:    field,
					Value:    value,
				})
				applied++
				rowTouched = true
			}
			if rowTouched {
				w.datasets[kind].Rows[index] = normalize.Row(kind, row)
				touched = append(touched, index)
			}
		}
		w.batchUpdateRowsLocked(kind, touched)
	}
	return applied
}

func sortedRows[V any](m map[int]V) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
