// Package sqlite provides a SQLite-backed usage ledger driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/patchbay/pkg/storage"
)

// SQLiteDriver implements storage.Driver using SQLite.
type SQLiteDriver struct {
	db *sql.DB
}

// NewSQLiteDriver creates a new SQLite-backed usage ledger.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDriver(dbPath string) (*SQLiteDriver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A pooled ":memory:" connection would get its own empty database,
	// and a single writer avoids SQLITE_BUSY under concurrent recording.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLiteDriver{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the necessary tables if they don't exist.
func (s *SQLiteDriver) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL,
		streamed BOOLEAN NOT NULL DEFAULT FALSE,
		finish_reason TEXT NOT NULL DEFAULT '',
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usage_records_created_at ON usage_records(created_at);
	CREATE INDEX IF NOT EXISTS idx_usage_records_model ON usage_records(model);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordUsage appends a record to the ledger.
func (s *SQLiteDriver) RecordUsage(ctx context.Context, rec *storage.UsageRecord) error {
	if rec == nil {
		return storage.ErrNilRecord
	}
	rec.Stamp()

	query := `INSERT INTO usage_records
		(id, request_id, model, streamed, finish_reason, prompt_tokens, completion_tokens, total_tokens, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.RequestID, rec.Model, rec.Streamed, rec.FinishReason,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.DurationMS, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	return nil
}

// RecentUsage returns up to limit records, most recent first.
func (s *SQLiteDriver) RecentUsage(ctx context.Context, limit int) ([]*storage.UsageRecord, error) {
	if limit <= 0 {
		limit = storage.DefaultRecentLimit
	}

	query := `SELECT id, request_id, model, streamed, finish_reason, prompt_tokens, completion_tokens, total_tokens, duration_ms, created_at
		FROM usage_records ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Totals aggregates the whole ledger.
func (s *SQLiteDriver) Totals(ctx context.Context) (*storage.Totals, error) {
	query := `SELECT COUNT(*),
		COALESCE(SUM(prompt_tokens), 0),
		COALESCE(SUM(completion_tokens), 0),
		COALESCE(SUM(total_tokens), 0)
		FROM usage_records`

	var t storage.Totals
	row := s.db.QueryRowContext(ctx, query)
	if err := row.Scan(&t.Requests, &t.PromptTokens, &t.CompletionTokens, &t.TotalTokens); err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}

	return &t, nil
}

// scanRecords scans multiple rows into UsageRecord structs.
func scanRecords(rows *sql.Rows) ([]*storage.UsageRecord, error) {
	var records []*storage.UsageRecord

	for rows.Next() {
		var rec storage.UsageRecord
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Model, &rec.Streamed, &rec.FinishReason,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// Close closes the database connection.
func (s *SQLiteDriver) Close() error {
	return s.db.Close()
}

// Ensure SQLiteDriver implements Driver
var _ storage.Driver = (*SQLiteDriver)(nil)
