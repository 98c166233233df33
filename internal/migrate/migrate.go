// Package migrate applies the embedded goose migrations.
// It is used by cmd/api when AUTO_MIGRATE is set and by integration tests.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/pkordes/tripvote/migrations"
)

// Up applies every pending migration and logs each one that ran.
func Up(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("migrate.Up: create provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate.Up: %w", err)
	}

	for _, r := range results {
		log.Info("migration applied",
			"version", r.Source.Version,
			"file", r.Source.Path,
			"duration_ms", r.Duration.Milliseconds(),
		)
	}
	return nil
}

// UpFromPool runs Up over a database/sql handle borrowed from pool.
// goose needs database/sql; the pgx stdlib adapter shares the pool's config.
func UpFromPool(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return Up(ctx, db, log)
}
