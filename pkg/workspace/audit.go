package workspace

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridwright/gridwright/pkg/entity"
)

// ChangeSource labels how a value got into the dataset.
type ChangeSource string

const (
	// SourceUpload is a wholesale dataset replacement.
	SourceUpload ChangeSource = "upload"

	// SourceManual is a user cell edit.
	SourceManual ChangeSource = "manual"

	// SourceSuggestion is an accepted producer proposal.
	SourceSuggestion ChangeSource = "suggestion"

	// SourceBulkFix is a bulk deterministic fix application.
	SourceBulkFix ChangeSource = "bulk_fix"
)

// ChangeEvent describes one applied change for the audit trail.
type ChangeEvent struct {
	ID       string       `json:"id"`
	At       time.Time    `json:"at"`
	Source   ChangeSource `json:"source"`
	Entity   entity.Kind  `json:"entity"`
	RowIndex int          `json:"row_index"`
	Field    string       `json:"field,omitempty"`
	Value    any          `json:"value,omitempty"`
}

// Recorder receives applied changes. Implementations must be fast or
// buffer internally; the workspace calls Record while holding its lock.
type Recorder interface {
	Record(ev ChangeEvent) error
}

// recordLocked stamps and forwards an event to the recorder, if any.
// Audit failures are logged and never fail the change that produced
// them.
func (w *Workspace) recordLocked(ev ChangeEvent) {
	if w.recorder == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.At = time.Now().UTC()
	if err := w.recorder.Record(ev); err != nil {
		w.logger.Warn("audit record failed",
			zap.String("entity", string(ev.Entity)),
			zap.String("source", string(ev.Source)),
			zap.Error(err))
	}
}
