package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements are applied in order; each one is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS contest_questions (
		id               TEXT PRIMARY KEY,
		contest_id       TEXT NOT NULL,
		sr_no            INTEGER NOT NULL,
		question         TEXT NOT NULL,
		correct_option   CHAR(1) NOT NULL,
		points           INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
		avg_time_minutes INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contest_questions_contest ON contest_questions (contest_id, sr_no)`,
	`CREATE TABLE IF NOT EXISTS contest_submissions (
		contest_id      TEXT NOT NULL,
		user_id         TEXT NOT NULL,
		question_id     TEXT NOT NULL REFERENCES contest_questions (id),
		selected_option CHAR(1) NOT NULL,
		is_correct      BOOLEAN NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (contest_id, user_id, question_id)
	)`,
}

// Migrate creates the live-contest tables when they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
