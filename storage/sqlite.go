// Package storage provides the SQLite-backed local project registry.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite holds the database connection for the project registry.
type SQLite struct {
	DB     *sql.DB
	Path   string
	Logger *zap.SugaredLogger

	closed bool
}

// NewSQLite opens (creating if needed) the registry database at dbPath and
// applies the schema.
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// A CLI process is the single writer; one connection avoids SQLITE_BUSY
	// between pooled connections of the same process.
	db.SetMaxOpenConns(1)

	if err := configureConnection(db, dbPath); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLite{DB: db, Path: dbPath, Logger: logger}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Debugw("project registry open", "path", dbPath)
	return s, nil
}

// configureConnection enables WAL mode, foreign keys and a busy timeout, and
// verifies the settings took effect.
func configureConnection(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		return fmt.Errorf("failed to verify foreign keys: %w", err)
	}
	if fkEnabled != 1 {
		return fmt.Errorf("foreign keys not enabled (got %d)", fkEnabled)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	// In-memory databases report journal mode "memory", not "wal"
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got %q)", journalMode)
	}

	return nil
}

func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		pi TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		created_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);

	CREATE TABLE IF NOT EXISTS deliveries (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		destination TEXT NOT NULL,
		file_count INTEGER NOT NULL DEFAULT 0,
		delivered_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_project ON deliveries(project_id);
	`
	_, err := s.DB.Exec(schema)
	return err
}

// conn returns the live connection, or ErrDatabaseClosed after Close.
func (s *SQLite) conn() (*sql.DB, error) {
	if s.closed {
		return nil, ErrDatabaseClosed
	}
	return s.DB, nil
}

// Close closes the database connection. Safe to call more than once.
func (s *SQLite) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.DB.Close()
}
