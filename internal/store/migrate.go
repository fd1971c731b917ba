package store

import (
	"context"
	"fmt"
)

// Schedules and fee entries live in JSONB columns so a batch or a student reads
// back as one document.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS teachers (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		photo_url     TEXT NOT NULL DEFAULT '',
		password_hash TEXT,
		google_sub    TEXT UNIQUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		teacher_id TEXT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		token      TEXT PRIMARY KEY,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked    BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id          TEXT PRIMARY KEY,
		teacher_id  TEXT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		name        TEXT NOT NULL,
		standard    TEXT NOT NULL DEFAULT '',
		monthly_fee DOUBLE PRECISION NOT NULL DEFAULT 0,
		schedule    JSONB NOT NULL DEFAULT '[]',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_teacher ON batches(teacher_id)`,
	`CREATE TABLE IF NOT EXISTS students (
		id           TEXT PRIMARY KEY,
		teacher_id   TEXT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		batch_id     TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		name         TEXT NOT NULL,
		phone        TEXT NOT NULL,
		joining_date DATE NOT NULL,
		fees         JSONB NOT NULL DEFAULT '{}',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_students_batch ON students(batch_id)`,
	`CREATE TABLE IF NOT EXISTS reminders (
		id           TEXT PRIMARY KEY,
		teacher_id   TEXT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		batch_id     TEXT NOT NULL,
		student_id   TEXT NOT NULL,
		month        TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'queued',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reminders_teacher ON reminders(teacher_id, created_at DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_reminders_queued ON reminders(student_id, month) WHERE status = 'queued'`,
}

// Migrate creates any missing tables and indexes.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
