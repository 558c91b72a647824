// Package suggest produces AI-backed change suggestions for uploaded
// tables: free-form table modifications and bulk fixes for validation
// errors.
//
// The workspace treats a Producer as a black box. Suggestions come back
// as plain row/field/value maps; nothing is applied until the caller
// feeds them through the workspace's proposal or fix paths.
package suggest

import (
	"context"

	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/validate"
)

// TableChange is a proposed modification to one entity table: a short
// user-facing message plus the changed cells keyed by row index.
type TableChange struct {
	// Message summarizes the change in one user-friendly sentence.
	Message string `json:"message"`

	// Changes holds only the modified fields, keyed by row index.
	Changes map[int]map[string]any `json:"changes"`
}

// Empty reports whether the change carries no cell modifications.
func (tc *TableChange) Empty() bool {
	return tc == nil || len(tc.Changes) == 0
}

// Fixes is a bulk correction map (entity -> row -> field -> value) for
// cells that currently carry validation errors. The shape matches what
// workspace.ApplyFixes consumes.
type Fixes map[entity.Kind]map[int]map[string]any

// Producer generates change suggestions for uploaded tables.
//
// Implementations must be safe for concurrent use.
type Producer interface {
	// ModifyTable applies a natural-language instruction to one entity
	// table and returns the proposed cell changes. An instruction the
	// model cannot act on yields an empty TableChange, not an error.
	ModifyTable(ctx context.Context, kind entity.Kind, instruction string, rows []entity.Row) (*TableChange, error)

	// FixAll proposes corrections for every errored cell across all
	// entities. Only rows present in errs are sent to the model; cells
	// without errors never appear in the result.
	FixAll(ctx context.Context, datasets map[entity.Kind][]entity.Row, errs validate.Errors) (Fixes, error)
}

// Null is a Producer that suggests nothing. It stands in when no API key
// is configured.
type Null struct{}

func (Null) ModifyTable(ctx context.Context, kind entity.Kind, instruction string, rows []entity.Row) (*TableChange, error) {
	return &TableChange{Message: "AI suggestions are not configured.", Changes: map[int]map[string]any{}}, nil
}

func (Null) FixAll(ctx context.Context, datasets map[entity.Kind][]entity.Row, errs validate.Errors) (Fixes, error) {
	return Fixes{}, nil
}

// Compile-time check.
var _ Producer = Null{}
