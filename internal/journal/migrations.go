package journal

import (
	"context"
	"database/sql"
)

// schema contains the DDL for the journal tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS passes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		renderer_id TEXT NOT NULL,
		triggered_by TEXT NOT NULL DEFAULT '',
		sweeps      TEXT NOT NULL DEFAULT '[]',
		revision    INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		started_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS faults (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		renderer_id TEXT NOT NULL,
		root_id     TEXT NOT NULL DEFAULT '',
		kind        TEXT NOT NULL,
		message     TEXT NOT NULL,
		loops       INTEGER NOT NULL DEFAULT 0,
		at          TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_passes_renderer_id ON passes(renderer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_faults_renderer_id ON faults(renderer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_faults_kind ON faults(kind)`,
}

// migrate executes the schema DDL.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
