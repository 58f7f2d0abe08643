// Package db is the SQLite storage sink for decoded invoice extracts.
//
// The database runs embedded (github.com/ncruces/go-sqlite3) in WAL mode so
// the dashboard and CLI can read while a sync writes.
//
// Tables:
//   - branches: one row per branch with its remote credentials
//   - invoice_headers: keyed by (branch_id, invoice_number, invoice_date, customer_number)
//   - invoice_details: the header key plus line_number
//
// Every upsert is idempotent on the natural key, so re-ingesting the same
// extract leaves the row counts unchanged.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrBranchNotFound is returned by GetBranch for an unknown branch id.
var ErrBranchNotFound = errors.New("branch not found")

// DB wraps the SQLite connection pool.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the database at path and creates the schema.
//
// The caller must call Close when done.
func Open(path string) (*DB, error) {
	return OpenContext(context.Background(), path)
}

// OpenContext is Open with context support.
func OpenContext(ctx context.Context, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	pragmas := []struct {
		stmt string
		what string
	}{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p.stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to %s: %w", p.what, err)
		}
	}

	if err := db.InitSchemaContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the tables if they don't exist. Safe to call repeatedly.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the tables with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS branches (
		branch_id TEXT PRIMARY KEY,
		branch_name TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		ftp_host TEXT NOT NULL DEFAULT '',
		ftp_username TEXT NOT NULL DEFAULT '',
		ftp_password TEXT NOT NULL DEFAULT '',
		remote_filename TEXT NOT NULL DEFAULT '',
		last_processed TEXT,
		updated_at TEXT NOT NULL
	);

	-- Amounts are stored as exact decimal text.
	CREATE TABLE IF NOT EXISTS invoice_headers (
		branch_id TEXT NOT NULL,
		invoice_number INTEGER NOT NULL,
		invoice_date INTEGER NOT NULL,
		customer_number INTEGER NOT NULL,
		customer_name TEXT,
		order_number INTEGER,
		invoice_amount TEXT,
		tax_amount TEXT,
		salesman_number INTEGER,
		warehouse_number INTEGER,
		transaction_code INTEGER,
		terms_code INTEGER,
		total_cases INTEGER,
		total_pieces INTEGER,
		route INTEGER,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (branch_id, invoice_number, invoice_date, customer_number)
	);

	CREATE TABLE IF NOT EXISTS invoice_details (
		branch_id TEXT NOT NULL,
		invoice_number INTEGER NOT NULL,
		invoice_date INTEGER NOT NULL,
		customer_number INTEGER NOT NULL,
		line_number INTEGER NOT NULL,
		item_number INTEGER,
		item_description TEXT,
		quantity INTEGER,
		unit_price TEXT,
		extended_amount TEXT,
		vendor_number INTEGER,
		brand TEXT,
		pack TEXT,
		unit TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (branch_id, invoice_number, invoice_date, customer_number, line_number)
	);

	CREATE INDEX IF NOT EXISTS idx_branches_active ON branches(active);
	CREATE INDEX IF NOT EXISTS idx_details_item ON invoice_details(branch_id, item_number);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
