package migrations

import (
	"context"
	"fmt"

	chstore "solana-dex-bot/internal/storage/clickhouse"
	pgstore "solana-dex-bot/internal/storage/postgres"
)

// RunPostgres applies pending journal migrations.
func RunPostgres(ctx context.Context, pool *pgstore.Pool) ([]string, error) {
	applied, err := pgstore.Migrate(ctx, pool, Postgres())
	if err != nil {
		return applied, fmt.Errorf("postgres migrations: %w", err)
	}
	return applied, nil
}

// RunClickhouse creates the database named in dsn, applies pending tick
// migrations and returns a connection to that database.
func RunClickhouse(ctx context.Context, dsn string) (*chstore.Conn, []string, error) {
	if err := chstore.EnsureDatabase(ctx, dsn); err != nil {
		return nil, nil, err
	}
	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	applied, err := chstore.Migrate(ctx, conn, Clickhouse())
	if err != nil {
		conn.Close()
		return nil, applied, fmt.Errorf("clickhouse migrations: %w", err)
	}
	return conn, applied, nil
}
