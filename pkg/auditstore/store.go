// Package auditstore persists the workspace audit trail in SQLite.
//
// The store is append-only: every applied change (upload, manual edit,
// accepted suggestion, bulk fix) becomes one row. Queries exist for
// history inspection; nothing is ever updated or deleted.
package auditstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Config configures a Store.
type Config struct {
	// Path is a local filesystem path to the audit database, or
	// ":memory:" for an in-process database.
	Path string
}

// Store is a SQLite-backed audit trail. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) a SQLite-backed audit database and
// migrates its schema.
//
// Parent directories of local file paths are created. WAL and a busy
// timeout are applied for predictable single-binary behavior.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit store: %w", err)
	}

	if err := configureLocalSQLite(ctx, db, dsn); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func buildDSN(cfg Config) (string, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("audit store path is required")
	}
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "file:") {
		return path, nil
	}

	if err := ensureStoreDir(path); err != nil {
		return "", err
	}

	return "file:" + filepath.Clean(path), nil
}

func ensureStoreDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create audit store directory: %w", err)
	}
	return nil
}

func configureLocalSQLite(ctx context.Context, db *sql.DB, dsn string) error {
	if dsn == ":memory:" {
		// In-memory databases exist per connection; the pool must not
		// rotate connections out from under the schema.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return nil
	}

	// Keep a single connection and use WAL to reduce lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	var busyTimeout int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&busyTimeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}

	return nil
}
