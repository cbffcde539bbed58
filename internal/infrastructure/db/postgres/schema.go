package postgres

import (
	"context"
	"database/sql"
)

// EnsureSchema creates the tables the service needs if they are missing.
// Statements are idempotent so it is safe on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS users (
  telegram_id  BIGINT PRIMARY KEY,
  name         TEXT NOT NULL DEFAULT '',
  nickname     TEXT NOT NULL DEFAULT '',
  phone_code   INT NOT NULL DEFAULT 7,
  phone_number BIGINT NULL,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
		`
CREATE TABLE IF NOT EXISTS phone_verifications (
  telegram_id    BIGINT PRIMARY KEY REFERENCES users(telegram_id) ON DELETE CASCADE,
  otp_hash       TEXT NOT NULL,
  claimed_code   INT NOT NULL,
  claimed_number BIGINT NOT NULL,
  attempts       INT NOT NULL DEFAULT 0,
  created_at     TIMESTAMPTZ NOT NULL
);`,
	}

	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
