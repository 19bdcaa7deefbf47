package repository

import (
	"context"
	"fmt"
)

// InitSchema creates the tables and indexes the relay needs.
// Every statement is idempotent, so it is safe to run on each deploy.
func InitSchema(ctx context.Context, db DBTX) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS s3_events (
			id             BIGSERIAL PRIMARY KEY,
			event_id       TEXT NOT NULL UNIQUE,
			bucket         TEXT NOT NULL,
			key            TEXT NOT NULL,
			event_name     TEXT NOT NULL,
			event_time     TIMESTAMPTZ NOT NULL,
			file_size      BIGINT NOT NULL DEFAULT 0 CHECK (file_size >= 0),
			content_type   TEXT,
			event_metadata JSONB,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			forwarded_at     TIMESTAMPTZ,
			forward_attempts INT NOT NULL DEFAULT 0,
			forward_error    TEXT,
			processed        BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`ALTER TABLE s3_events ADD COLUMN IF NOT EXISTS processed BOOLEAN NOT NULL DEFAULT FALSE;`,
		`CREATE INDEX IF NOT EXISTS idx_s3_events_created_at ON s3_events (created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_s3_events_key ON s3_events (key);`,
		`CREATE INDEX IF NOT EXISTS idx_s3_events_unforwarded ON s3_events (id) WHERE forwarded_at IS NULL;`,
		`CREATE TABLE IF NOT EXISTS file_contents (
			id           BIGSERIAL PRIMARY KEY,
			event_id     TEXT,
			s3_key       TEXT NOT NULL,
			content      TEXT,
			content_hash TEXT,
			stored_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_file_contents_event_id ON file_contents (event_id);`,
	}

	return WithTx(ctx, db, func(tx DBTX) error {
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema statement: %w", err)
			}
		}
		return nil
	})
}

// DropSchema removes every relay table. Used by the migrate tool's reset command.
func DropSchema(ctx context.Context, db DBTX) error {
	return WithTx(ctx, db, func(tx DBTX) error {
		for _, table := range []string{"file_contents", "s3_events"} {
			if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
				return fmt.Errorf("failed to drop %s: %w", table, err)
			}
		}
		return nil
	})
}

// TableStatus describes one relay table as seen by the migrate tool.
type TableStatus struct {
	Name   string
	Exists bool
	Rows   int64
}

// SchemaStatus reports which relay tables exist and how many rows they hold.
func SchemaStatus(ctx context.Context, db DBTX) ([]TableStatus, error) {
	tables := []string{"s3_events", "file_contents"}
	out := make([]TableStatus, 0, len(tables))
	for _, table := range tables {
		st := TableStatus{Name: table}
		var regclass *string
		if err := db.QueryRow(ctx, `SELECT to_regclass($1)::text`, table).Scan(&regclass); err != nil {
			return nil, fmt.Errorf("check table %s: %w", table, err)
		}
		st.Exists = regclass != nil
		if st.Exists {
			if err := db.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, table)).Scan(&st.Rows); err != nil {
				return nil, fmt.Errorf("count %s: %w", table, err)
			}
		}
		out = append(out, st)
	}
	return out, nil
}
