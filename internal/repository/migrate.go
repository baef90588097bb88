package repository

import (
	"context"
	"fmt"
)

const (
	tableJobs       = "processing_job"
	tableResults    = "result_record"
	tableCategories = "custom_category"
)

// Column types are kept to TEXT/INTEGER so the same DDL runs on SQLite and Postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS processing_job (
		id            TEXT PRIMARY KEY,
		file_ref      TEXT NOT NULL,
		file_name     TEXT NOT NULL,
		state         TEXT NOT NULL,
		progress      INTEGER NOT NULL DEFAULT 0,
		stage         TEXT NOT NULL DEFAULT '',
		attempts      INTEGER NOT NULL DEFAULT 0,
		result_id     TEXT,
		error_message TEXT NOT NULL DEFAULT '',
		options       TEXT NOT NULL DEFAULT '{}',
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		started_at    TEXT,
		finished_at   TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS processing_job_state_idx ON processing_job (state, updated_at)`,
	`CREATE TABLE IF NOT EXISTS result_record (
		id         TEXT PRIMARY KEY,
		job_id     TEXT NOT NULL,
		success    INTEGER NOT NULL,
		payload    TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS result_record_job_idx ON result_record (job_id)`,
	`CREATE TABLE IF NOT EXISTS custom_category (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		entries     TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,
}

// Migrate creates the tables if they do not exist yet. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.exec(ctx, stmt, []any{}); err != nil {
			db.logger.Error("schema migration failed", "step", i, "error", err)
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	db.logger.Info("schema migrated", "dialect", db.Dialect, "statements", len(schema))
	return nil
}
