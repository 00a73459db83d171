package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is idempotent; the named unique keys are matched by the attendance repository.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id          BIGSERIAL PRIMARY KEY,
		unit_code   TEXT NOT NULL,
		lecturer_id TEXT NOT NULL,
		qr_token    TEXT NOT NULL,
		latitude    DOUBLE PRECISION,
		longitude   DOUBLE PRECISION,
		require_gps BOOLEAN NOT NULL DEFAULT FALSE,
		state       TEXT NOT NULL DEFAULT 'active' CHECK (state IN ('active', 'ended')),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		ended_at    TIMESTAMPTZ,
		CONSTRAINT sessions_gps_anchor_check
			CHECK (NOT require_gps OR (latitude IS NOT NULL AND longitude IS NOT NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_lecturer_created_idx ON sessions (lecturer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS sessions_active_created_idx ON sessions (created_at) WHERE state = 'active'`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id          UUID PRIMARY KEY,
		session_id  BIGINT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
		student_id  TEXT NOT NULL,
		device_id   TEXT NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('Present', 'Late')),
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT attendance_session_student_key UNIQUE (session_id, student_id),
		CONSTRAINT attendance_session_device_key UNIQUE (session_id, device_id)
	)`,
	`CREATE INDEX IF NOT EXISTS attendance_student_recorded_idx ON attendance (student_id, recorded_at DESC)`,
}

// Migrate applies the schema in a single transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}
