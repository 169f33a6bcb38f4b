package postgres

import (
	"context"
	"database/sql"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id                   TEXT PRIMARY KEY,
	email                TEXT NOT NULL UNIQUE,
	password_hash        TEXT NOT NULL,
	two_factor_secret    TEXT,
	two_factor_enabled   BOOLEAN NOT NULL DEFAULT FALSE,
	two_factor_verified  BOOLEAN NOT NULL DEFAULT FALSE,
	two_factor_last_step BIGINT NOT NULL DEFAULT 0,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the users table when missing. Safe on every boot.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}
