// Package testutil provides shared helpers for integration tests.
// Helpers in this package skip automatically when TEST_DATABASE_URL is not
// set, so unit tests can run without a running database.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/pkordes/tripvote/internal/migrate"
	"github.com/pkordes/tripvote/internal/repo"
)

// dsnEnv names the variable that opts a run into integration tests.
const dsnEnv = "TEST_DATABASE_URL"

// quietLogger discards the connect and migration logs tests would otherwise print.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewPool connects to TEST_DATABASE_URL through repo.Connect, the same path
// the server takes, with a single attempt. The pool is closed when the test
// and all its subtests finish.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pool, err := repo.Connect(context.Background(), requireDSN(t), 1, quietLogger())
	if err != nil {
		t.Fatalf("testutil.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// NewTx begins a transaction on a fresh test pool and rolls it back when the
// test finishes. Repositories bound to the returned pgx.Tx see their own
// writes and leave nothing behind.
func NewTx(t *testing.T) pgx.Tx {
	t.Helper()
	pool := NewPool(t)

	tx, err := pool.Begin(context.Background())
	if err != nil {
		t.Fatalf("testutil.NewTx: begin: %v", err)
	}
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	return tx
}

// NewSQLDB returns a database/sql view of a test pool, for goose.
func NewSQLDB(t *testing.T) *sql.DB {
	t.Helper()

	db := stdlib.OpenDBFromPool(NewPool(t))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// MigrateUp applies every pending migration to dsn. It is meant for TestMain,
// where no *testing.T is available.
func MigrateUp(ctx context.Context, dsn string) error {
	pool, err := repo.Connect(ctx, dsn, 1, quietLogger())
	if err != nil {
		return fmt.Errorf("testutil.MigrateUp: %w", err)
	}
	defer pool.Close()

	if err := migrate.UpFromPool(ctx, pool, quietLogger()); err != nil {
		return fmt.Errorf("testutil.MigrateUp: %w", err)
	}
	return nil
}

// DSN returns TEST_DATABASE_URL, or "" when integration tests are disabled.
func DSN() string {
	return os.Getenv(dsnEnv)
}

// requireDSN returns TEST_DATABASE_URL, skipping the test if it is not set.
func requireDSN(t *testing.T) string {
	t.Helper()
	dsn := DSN()
	if dsn == "" {
		t.Skip(dsnEnv + " not set; skipping integration test")
	}
	return dsn
}
