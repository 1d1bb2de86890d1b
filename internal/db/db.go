// Package db provides the SQLite connection and schema for rgbd.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Colour request ledger - append-only history of accepted and rejected writes.
	// It is never read back to restore output state.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS color_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			source TEXT,
			request_id TEXT,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_color_ledger_type_ts ON color_ledger(event_type, timestamp);
		CREATE INDEX IF NOT EXISTS idx_color_ledger_request ON color_ledger(request_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create color_ledger table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
