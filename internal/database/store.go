package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/sipstreak/internal/friends"
)

// Store is the Postgres relationship and profile store.
type Store struct {
	*queries
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		queries: &queries{db: pool},
		pool:    pool,
	}
}

// RunInTx runs fn inside one transaction; it commits when fn returns nil
// and rolls back otherwise.
func (s *Store) RunInTx(ctx context.Context, fn func(tx friends.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&queries{db: tx})
	})
}

// queries implements friends.Tx against either the pool or an open transaction.
type queries struct {
	db dbtx
}
