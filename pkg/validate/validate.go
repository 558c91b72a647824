package validate

import (
	"fmt"

	"github.com/gridwright/gridwright/pkg/entity"
)

// All runs the complete pipeline over the three normalized datasets:
// per-row schema validation, duplicate-identifier detection, and the
// cross-entity checks, merged into one error map.
//
// Merge order is schema, then duplicates, then cross-entity; a later
// stage's message wins when both target the same cell. In practice the
// stages rarely collide because cross-entity checks skip fields the
// schema already rejected.
func All(d Datasets) Errors {
	errs := Errors{}

	for _, kind := range entity.Kinds() {
		rows := d.Rows(kind)
		for index, row := range rows {
			for field, msg := range ValidateRow(kind, row) {
				errs.Add(kind, index, field, msg)
			}
		}
		idField := entity.IDField(kind)
		for index, cells := range FindDuplicateIDs(rows, idField) {
			for field, msg := range cells {
				errs.Add(kind, index, field, msg)
			}
		}
	}

	errs.Merge(CrossEntity(d))
	return errs
}

// RowAt runs the complete pipeline scoped to a single row: schema rules,
// a duplicate check of this row's identifier against the rest of its
// column, and the single-row cross-entity checks.
//
// The row is read from the datasets by index so the caller always
// validates current state, never a stale snapshot.
func RowAt(kind entity.Kind, index int, d Datasets) CellErrors {
	rows := d.Rows(kind)
	if index < 0 || index >= len(rows) {
		return CellErrors{}
	}
	row := rows[index]

	cells := ValidateRow(kind, row)

	idField := entity.IDField(kind)
	if RowHasDuplicateID(rows, idField, index) {
		cells[idField] = fmt.Sprintf("Duplicate %s found", idField)
	}

	for field, msg := range CrossEntityRow(kind, row, d) {
		cells[field] = msg
	}
	return cells
}
