// Package repo contains all database access logic for the trip proposal service.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner is a db that can also open transactions.
// It is implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type TxBeginner interface {
	db
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Repos bundles the per-resource repositories bound to one db handle,
// either the pool or a single transaction.
type Repos struct {
	Trips     TripRepo
	Members   MemberRepo
	Proposals ProposalRepo
}

// NewRepos binds every repository to the same db handle.
func NewRepos(db db) Repos {
	return Repos{
		Trips:     NewTripRepo(db),
		Members:   NewMemberRepo(db),
		Proposals: NewProposalRepo(db),
	}
}

// Store gives services both plain repositories and a unit of work.
// Every read-modify-write in the proposal lifecycle runs inside InTx so that
// row locks taken with the *ForUpdate methods are held until commit.
type Store interface {
	// Repos returns repositories that run each statement on its own.
	Repos() Repos

	// InTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise; fn's error is returned unchanged
	// so callers can still errors.Is against domain sentinels.
	InTx(ctx context.Context, fn func(Repos) error) error
}

// pgStore is the Postgres implementation of Store.
type pgStore struct {
	pool TxBeginner
}

// NewStore constructs a Store backed by the provided pool.
// In production pass *pgxpool.Pool; in unit tests pass a pgxmock pool.
func NewStore(pool TxBeginner) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Repos() Repos {
	return NewRepos(s.pool)
}

func (s *pgStore) InTx(ctx context.Context, fn func(Repos) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("repo.Store.InTx: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = fmt.Errorf("repo.Store.InTx: commit: %w", e)
		}
	}()

	return fn(NewRepos(tx))
}

// Postgres error codes that mean "try the whole transaction again".
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
)

// IsRetryable reports whether err is a transient concurrency failure that a
// fresh transaction may not hit again.
func IsRetryable(err error) bool {
	var pg *pgconn.PgError
	if errors.As(err, &pg) {
		return pg.Code == codeSerializationFailure || pg.Code == codeDeadlockDetected
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == codeForeignKeyViolation
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scanX
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}
