package workspace

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/normalize"
)

// snapshotVersion is bumped on incompatible snapshot layout changes.
const snapshotVersion = 1

// invalidKey marks the JSON encoding of the normalization-failure
// sentinel (and of NaN, which encoding/json cannot represent).
const invalidKey = "$invalid"

type snapshotFile struct {
	Version   int                             `json:"version"`
	SavedAt   time.Time                       `json:"saved_at"`
	Datasets  map[entity.Kind][]entity.Row    `json:"datasets"`
	Confirmed map[entity.Kind]map[int]map[string]bool `json:"confirmed,omitempty"`
}

// Save writes the workspace state (datasets and AI-confirmed markers) to
// path as JSON, atomically via a temp file and rename. Pending proposals
// are session state and are not persisted. Persistence is an explicit
// boundary: nothing else in the workspace touches disk.
func (w *Workspace) Save(path string) error {
	w.mu.Lock()
	snap := snapshotFile{
		Version:   snapshotVersion,
		SavedAt:   time.Now().UTC(),
		Datasets:  map[entity.Kind][]entity.Row{},
		Confirmed: map[entity.Kind]map[int]map[string]bool{},
	}
	for kind, ds := range w.datasets {
		rows := make([]entity.Row, len(ds.Rows))
		for i, r := range ds.Rows {
			rows[i] = encodeRow(r)
		}
		snap.Datasets[kind] = rows
	}
	for kind, rows := range w.confirmed {
		cp := make(map[int]map[string]bool, len(rows))
		for index, fields := range rows {
			fc := make(map[string]bool, len(fields))
			for f := range fields {
				fc[f] = true
			}
			cp[index] = fc
		}
		snap.Confirmed[kind] = cp
	}
	w.mu.Unlock()

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load replaces the workspace state from a snapshot file. Rows are
// re-normalized (idempotent for values saved by Save) and the error map
// is recomputed from scratch rather than trusted from disk.
func (w *Workspace) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.datasets = map[entity.Kind]*entity.Dataset{}
	for _, kind := range entity.Kinds() {
		rows, ok := snap.Datasets[kind]
		if !ok {
			continue
		}
		for i, r := range rows {
			rows[i] = decodeRow(r)
		}
		w.datasets[kind] = entity.NewDataset(kind, normalize.Dataset(kind, rows))
	}

	w.confirmed = map[entity.Kind]map[int]map[string]bool{}
	for kind, rows := range snap.Confirmed {
		w.confirmed[kind] = rows
	}

	w.pending = map[entity.Kind]*Proposal{}
	w.validateAllLocked()
	return nil
}

// encodeRow maps in-memory values JSON cannot carry (NaN, the Invalid
// sentinel) to a tagged object form.
func encodeRow(r entity.Row) entity.Row {
	out := make(entity.Row, len(r))
	for k, v := range r {
		switch val := v.(type) {
		case entity.Invalid:
			out[k] = map[string]any{invalidKey: val.Raw}
		case float64:
			if math.IsNaN(val) || math.IsInf(val, 0) {
				out[k] = map[string]any{invalidKey: "NaN"}
			} else {
				out[k] = val
			}
		default:
			out[k] = v
		}
	}
	return out
}

// decodeRow reverses encodeRow's tagged form; everything else is left
// for re-normalization to canonicalize.
func decodeRow(r entity.Row) entity.Row {
	out := make(entity.Row, len(r))
	for k, v := range r {
		if m, ok := v.(map[string]any); ok && len(m) == 1 {
			if raw, ok := m[invalidKey].(string); ok {
				out[k] = entity.Invalid{Raw: raw}
				continue
			}
		}
		out[k] = v
	}
	return out
}
