package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS country_runs (
	country      TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	ipv4_count   INTEGER NOT NULL,
	ipv6_count   INTEGER NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS country_blocks (
	country      TEXT NOT NULL REFERENCES country_runs (country) ON DELETE CASCADE,
	family       TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	cidr         CIDR NOT NULL,
	first_addr   INET NOT NULL,
	last_addr    INET NOT NULL,
	run_id       TEXT NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (country, family, seq)
);
`

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the tables the block repository needs.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
