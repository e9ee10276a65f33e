// Package postgres implements the repository interfaces on PostgreSQL through
// a pgx connection pool. It is the multi-instance alternative to the sqlite
// backend: same interfaces, same error kinds, same ordering guarantees.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/spacedesk/internal/apperror"
	"github.com/sakif/spacedesk/internal/repository"
)

var _ repository.Store = (*DB)(nil)

const defaultQueryTimeout = 5 * time.Second

type DB struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

type Option func(*DB)

// WithQueryTimeout bounds every repository call. Zero disables the bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(db *DB) { db.queryTimeout = d }
}

// New connects to dsn, checks the connection and applies migrations.
func New(ctx context.Context, dsn string, opts ...Option) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db := &DB{pool: pool, queryTimeout: defaultQueryTimeout}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.MigrateUp(); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	if err := db.pool.Ping(ctx); err != nil {
		return apperror.Storage("postgres: ping", err)
	}
	return nil
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, db.queryTimeout)
}

// inTx runs fn in a transaction. Errors fn already classified pass through;
// anything else (begin, commit, rollback) is a storage failure.
func (db *DB) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	err := pgx.BeginFunc(ctx, db.pool, fn)
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Storage("postgres: "+op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
