package validate

import (
	"fmt"

	"github.com/gridwright/gridwright/pkg/entity"
)

// FindDuplicateIDs scans one identifier column and returns errors for
// every row that shares its identifier with another row.
//
// The first occurrence is the comparison anchor: when a repeat is found,
// both the anchor row and the current row are marked, and the anchor is
// retained so that a third or fourth occurrence is marked too. Single
// pass with a hash lookup, O(n).
//
// Uniqueness is scoped to one entity's own column; the same identifier
// string appearing in a different entity's table is not a conflict.
func FindDuplicateIDs(rows []entity.Row, idField string) RowErrors {
	seen := make(map[string]int, len(rows))
	dups := RowErrors{}
	msg := fmt.Sprintf("Duplicate %s found", idField)

	for index, row := range rows {
		id, ok := entity.String(row[idField])
		if !ok || id == "" {
			// Missing identifiers are a schema problem, not a duplicate.
			continue
		}
		if first, dup := seen[id]; dup {
			mark(dups, first, idField, msg)
			mark(dups, index, idField, msg)
		} else {
			seen[id] = index
		}
	}
	return dups
}

// RowHasDuplicateID reports whether the identifier at rowIndex appears in
// any other row. Used by single-row re-validation after an ID edit.
func RowHasDuplicateID(rows []entity.Row, idField string, rowIndex int) bool {
	if rowIndex < 0 || rowIndex >= len(rows) {
		return false
	}
	id, ok := entity.String(rows[rowIndex][idField])
	if !ok || id == "" {
		return false
	}
	for i, row := range rows {
		if i == rowIndex {
			continue
		}
		if other, ok := entity.String(row[idField]); ok && other == id {
			return true
		}
	}
	return false
}

func mark(re RowErrors, index int, field, msg string) {
	ce, ok := re[index]
	if !ok {
		ce = CellErrors{}
		re[index] = ce
	}
	ce[field] = msg
}
