package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bakemark/invrpt/internal/ingest/fetch"
)

// Branch is one row of the branches table.
type Branch struct {
	ID             string     `json:"branch_id"`
	Name           string     `json:"branch_name"`
	Active         bool       `json:"active"`
	Host           string     `json:"ftp_host"`
	Username       string     `json:"ftp_username"`
	Password       string     `json:"-"`
	RemoteFilename string     `json:"remote_filename"`
	LastProcessed  *time.Time `json:"last_processed,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Credentials returns the remote retrieval settings of the branch.
func (b *Branch) Credentials() fetch.Credentials {
	return fetch.Credentials{
		Host:           b.Host,
		Username:       b.Username,
		Password:       b.Password,
		RemoteFilename: b.RemoteFilename,
	}
}

// UpsertBranch inserts or updates a branch. LastProcessed is left untouched
// on update.
func (db *DB) UpsertBranch(ctx context.Context, b *Branch) error {
	if b.ID == "" {
		return fmt.Errorf("branch id is required")
	}

	query := `
	INSERT INTO branches (
		branch_id, branch_name, active, ftp_host, ftp_username,
		ftp_password, remote_filename, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(branch_id) DO UPDATE SET
		branch_name = excluded.branch_name,
		active = excluded.active,
		ftp_host = excluded.ftp_host,
		ftp_username = excluded.ftp_username,
		ftp_password = excluded.ftp_password,
		remote_filename = excluded.remote_filename,
		updated_at = excluded.updated_at
	`

	_, err := db.conn.ExecContext(ctx, query,
		b.ID,
		b.Name,
		boolToInt(b.Active),
		b.Host,
		b.Username,
		b.Password,
		b.RemoteFilename,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert branch %s: %w", b.ID, err)
	}
	return nil
}

// GetBranch returns a branch by id, or ErrBranchNotFound.
func (db *DB) GetBranch(ctx context.Context, id string) (*Branch, error) {
	row := db.conn.QueryRowContext(ctx, selectBranchSQL+` WHERE branch_id = ?`, id)

	b, err := scanBranch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get branch %s: %w", id, err)
	}
	return b, nil
}

// ListBranches returns branches ordered by id. With activeOnly set inactive
// branches are omitted.
func (db *DB) ListBranches(ctx context.Context, activeOnly bool) ([]*Branch, error) {
	query := selectBranchSQL
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY branch_id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer rows.Close()

	var branches []*Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating branches: %w", err)
	}
	return branches, nil
}

// TouchLastProcessed records that a sync of the branch ingested files.
func (db *DB) TouchLastProcessed(ctx context.Context, branchID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.conn.ExecContext(ctx,
		`UPDATE branches SET last_processed = ?, updated_at = ? WHERE branch_id = ?`,
		now, now, branchID)
	if err != nil {
		return fmt.Errorf("failed to update last_processed for %s: %w", branchID, err)
	}
	return nil
}

const selectBranchSQL = `
	SELECT branch_id, branch_name, active, ftp_host, ftp_username,
	       ftp_password, remote_filename, last_processed, updated_at
	FROM branches`

type scanner interface {
	Scan(dest ...any) error
}

func scanBranch(s scanner) (*Branch, error) {
	var (
		b             Branch
		active        int
		lastProcessed sql.NullString
		updatedAt     string
	)

	err := s.Scan(
		&b.ID,
		&b.Name,
		&active,
		&b.Host,
		&b.Username,
		&b.Password,
		&b.RemoteFilename,
		&lastProcessed,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Active = active != 0
	b.LastProcessed = nullStringToTime(lastProcessed)
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		b.UpdatedAt = t
	}
	return &b, nil
}

func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
