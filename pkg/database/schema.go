package database

import (
	"context"

	"github.com/jmoiron/sqlx"
)

var scheduleRunSchema = []string{
	`CREATE TABLE IF NOT EXISTS schedule_runs (
		id UUID PRIMARY KEY,
		parent_run_id UUID NULL REFERENCES schedule_runs(id) ON DELETE SET NULL,
		status VARCHAR(16) NOT NULL,
		schedule_type VARCHAR(32) NOT NULL,
		seed BIGINT NOT NULL,
		progress INT NOT NULL DEFAULT 0,
		config JSONB NOT NULL,
		result JSONB NULL,
		error_message TEXT NULL,
		created_by VARCHAR(64) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finished_at TIMESTAMPTZ NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_schedule_runs_status_created ON schedule_runs (status, created_at)`,
}

// EnsureSchema creates the run store tables when they are missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range scheduleRunSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
