package auditstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/workspace"
)

const schemaVersion = 1

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version)
			VALUES (1, 1)
			ON CONFLICT(id) DO NOTHING;`,

		`CREATE TABLE IF NOT EXISTS change_events (
			event_id TEXT PRIMARY KEY,
			at TEXT NOT NULL,
			source TEXT NOT NULL,
			entity TEXT NOT NULL,
			row_index INTEGER NOT NULL,
			field TEXT NOT NULL DEFAULT '',
			value TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_entity ON change_events(entity);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_at ON change_events(at);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE schema_meta SET schema_version = ? WHERE id = 1 AND schema_version < ?`,
		schemaVersion, schemaVersion); err != nil {
		return fmt.Errorf("bump schema version: %w", err)
	}

	return tx.Commit()
}

// Record appends one change event. It implements workspace.Recorder.
//
// The workspace calls Record while holding its lock, so this must stay
// a single fast INSERT.
func (s *Store) Record(ev workspace.ChangeEvent) error {
	value, err := encodeValue(ev.Value)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO change_events (event_id, at, source, entity, row_index, field, value)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.At.UTC().Format(time.RFC3339Nano),
		string(ev.Source),
		string(ev.Entity),
		ev.RowIndex,
		ev.Field,
		value,
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

// encodeValue renders the applied value as text. Strings pass through;
// anything else is JSON.
func encodeValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode change value: %w", err)
	}
	return string(b), nil
}

// Query filters event history. Zero values mean "any".
type Query struct {
	// Entity restricts results to one entity kind.
	Entity entity.Kind

	// Source restricts results to one change source.
	Source workspace.ChangeSource

	// Since restricts results to events at or after this time.
	Since time.Time

	// Limit caps the result count; <= 0 means no cap.
	Limit int
}

// Event is one persisted audit row.
type Event struct {
	ID       string                 `json:"id"`
	At       time.Time              `json:"at"`
	Source   workspace.ChangeSource `json:"source"`
	Entity   entity.Kind            `json:"entity"`
	RowIndex int                    `json:"row_index"`
	Field    string                 `json:"field"`
	Value    string                 `json:"value"`
}

// Events returns matching events, newest first.
func (s *Store) Events(ctx context.Context, q Query) ([]Event, error) {
	query := `SELECT event_id, at, source, entity, row_index, field, value
		FROM change_events WHERE 1=1`
	var args []any

	if q.Entity != "" {
		query += ` AND entity = ?`
		args = append(args, string(q.Entity))
	}
	if q.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(q.Source))
	}
	if !q.Since.IsZero() {
		query += ` AND at >= ?`
		args = append(args, q.Since.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY at DESC, event_id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query change events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var at, source, kind string
		if err := rows.Scan(&ev.ID, &at, &source, &kind, &ev.RowIndex, &ev.Field, &ev.Value); err != nil {
			return nil, fmt.Errorf("scan change event: %w", err)
		}
		ev.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		ev.Source = workspace.ChangeSource(source)
		ev.Entity = entity.Kind(kind)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Count returns the number of events matching the query's filters
// (Limit is ignored).
func (s *Store) Count(ctx context.Context, q Query) (int, error) {
	query := `SELECT COUNT(*) FROM change_events WHERE 1=1`
	var args []any
	if q.Entity != "" {
		query += ` AND entity = ?`
		args = append(args, string(q.Entity))
	}
	if q.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(q.Source))
	}
	if !q.Since.IsZero() {
		query += ` AND at >= ?`
		args = append(args, q.Since.UTC().Format(time.RFC3339Nano))
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count change events: %w", err)
	}
	return n, nil
}

// Compile-time check that Store implements workspace.Recorder.
var _ workspace.Recorder = (*Store)(nil)
