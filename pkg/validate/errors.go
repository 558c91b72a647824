// Package validate decides what a valid row means: declarative per-field
// schema checks, duplicate-identifier detection, and the cross-entity
// referential checks that need all three datasets at once.
//
// Validation never rejects malformed data with an error return; malformed
// data is itself the output, expressed as field-level messages.
package validate

import (
	"github.com/gridwright/gridwright/pkg/entity"
)

// CellErrors maps field name to a human-readable message for one row.
// Field keys match the record field names exactly so callers can index
// directly by column.
type CellErrors map[string]string

// RowErrors maps row index to that row's cell errors.
type RowErrors map[int]CellErrors

// Errors is the full error map: entity -> row index -> field -> message.
//
// Absence means clean: a row with no errors has no entry, and an entity
// with no errored rows has no key at all.
type Errors map[entity.Kind]RowErrors

// Add records one message, creating intermediate maps as needed.
func (e Errors) Add(kind entity.Kind, row int, field, message string) {
	re, ok := e[kind]
	if !ok {
		re = RowErrors{}
		e[kind] = re
	}
	ce, ok := re[row]
	if !ok {
		ce = CellErrors{}
		re[row] = ce
	}
	ce[field] = message
}

// Merge folds other into e at field granularity; on conflict the message
// from other wins. Merge order therefore determines precedence.
func (e Errors) Merge(other Errors) {
	for kind, rows := range other {
		for row, cells := range rows {
			for field, msg := range cells {
				e.Add(kind, row, field, msg)
			}
		}
	}
}

// Clone returns a deep copy.
func (e Errors) Clone() Errors {
	out := make(Errors, len(e))
	for kind, rows := range e {
		rc := make(RowErrors, len(rows))
		for row, cells := range rows {
			cc := make(CellErrors, len(cells))
			for f, m := range cells {
				cc[f] = m
			}
			rc[row] = cc
		}
		out[kind] = rc
	}
	return out
}

// Empty reports whether no entity has any errors.
func (e Errors) Empty() bool {
	for _, rows := range e {
		if len(rows) > 0 {
			return false
		}
	}
	return true
}

// Count returns the total number of cell-level messages.
func (e Errors) Count() int {
	n := 0
	for _, rows := range e {
		for _, cells := range rows {
			n += len(cells)
		}
	}
	return n
}

// Merge folds other into the row-level map at field granularity.
func (re RowErrors) Merge(other RowErrors) {
	for row, cells := range other {
		cur, ok := re[row]
		if !ok {
			cur = CellErrors{}
			re[row] = cur
		}
		for f, m := range cells {
			cur[f] = m
		}
	}
}

// Clone returns a deep copy.
func (re RowErrors) Clone() RowErrors {
	out := make(RowErrors, len(re))
	for row, cells := range re {
		cc := make(CellErrors, len(cells))
		for f, m := range cells {
			cc[f] = m
		}
		out[row] = cc
	}
	return out
}

// Clone returns a copy.
func (ce CellErrors) Clone() CellErrors {
	out := make(CellErrors, len(ce))
	for f, m := range ce {
		out[f] = m
	}
	return out
}
