package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id           UUID PRIMARY KEY,
		email        TEXT NOT NULL,
		password     TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		avatar_url   TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email))`,
	`CREATE TABLE IF NOT EXISTS friend_requests (
		id          UUID PRIMARY KEY,
		sender_id   UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		receiver_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		status      TEXT NOT NULL DEFAULT 'pending'
		            CHECK (status IN ('pending', 'accepted', 'rejected')),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (sender_id <> receiver_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS friend_requests_pending_pair_idx
		ON friend_requests (LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id))
		WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS friendships (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		friend_id  UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, friend_id),
		CHECK (user_id <> friend_id)
	)`,
	`CREATE INDEX IF NOT EXISTS friendships_friend_idx ON friendships (friend_id)`,
}

// OpenSQL exposes pool through database/sql for tooling that needs it.
func OpenSQL(pool *pgxpool.Pool) *sql.DB {
	return stdlib.OpenDBFromPool(pool)
}

// Migrate applies the schema to db.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
