package postgres

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the Postgres record store for supporters and artifacts.
type DB struct {
	Pool *pgxpool.Pool
}

// Connect opens a pool and pings it once so a bad DSN fails at startup.
func Connect(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ready reports whether the database answers.
func (db *DB) Ready(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// RunMigration applies the schema file at path. Every statement in it is
// guarded with IF NOT EXISTS.
func (db *DB) RunMigration(ctx context.Context, path string) error {
	schema, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", path, err)
	}
	if _, err := db.Pool.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("apply migration %s: %w", path, err)
	}
	return nil
}
