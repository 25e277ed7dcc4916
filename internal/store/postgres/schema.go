package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS import_batches (
		id             UUID PRIMARY KEY,
		record_type    TEXT NOT NULL,
		file_name      TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT 'active',
		total_rows     INTEGER NOT NULL DEFAULT 0,
		success_count  INTEGER NOT NULL DEFAULT 0,
		error_count    INTEGER NOT NULL DEFAULT 0,
		skipped_count  INTEGER NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		rolled_back_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS imported_records (
		id           UUID PRIMARY KEY,
		batch_id     UUID NOT NULL REFERENCES import_batches(id),
		record_type  TEXT NOT NULL,
		row_number   INTEGER NOT NULL,
		identity_key TEXT,
		data         JSONB NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS imported_records_batch_idx ON imported_records (batch_id)`,
	`CREATE INDEX IF NOT EXISTS imported_records_identity_idx ON imported_records (record_type, identity_key)`,
	`CREATE INDEX IF NOT EXISTS import_batches_created_idx ON import_batches (created_at DESC)`,
}

// EnsureSchema creates the store tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
