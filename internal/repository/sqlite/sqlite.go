// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database living inside the binary as a single file,
// so a single-server deployment of the desktop needs no database server at all.
// Tests use ":memory:" for a throwaway database.
//
// modernc.org/sqlite is a pure Go translation of the SQLite C code, so no C
// compiler is needed to build or cross-compile.
//
// CONCURRENCY:
// Uniqueness lives in the schema (UNIQUE indexes), not in Go code. Two
// concurrent "add favorite" requests for the same item both reach the INSERT;
// SQLite serialises the writes and the loser sees zero affected rows, which we
// report as a conflict. Multi-statement writes run in one transaction opened
// with BEGIN IMMEDIATE (_txlock=immediate) so they take the write lock up front.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/spacedesk/internal/apperror"
	"github.com/sakif/spacedesk/internal/repository"
)

var _ repository.Store = (*DB)(nil)

const defaultQueryTimeout = 5 * time.Second

// DB wraps a sql.DB connection pool and implements every repository interface.
type DB struct {
	conn         *sql.DB
	queryTimeout time.Duration
}

// Option configures a DB.
type Option func(*DB)

// WithQueryTimeout bounds every repository call. Zero disables the bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(db *DB) { db.queryTimeout = d }
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/spacedesk.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests; lost on close)
//
// Pragmas are passed in the DSN so that every pooled connection gets them,
// not just the first one.
func New(dbPath string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" is its own empty database, so the pool is
	// pinned to one connection.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn, queryTimeout: defaultQueryTimeout}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// dsn turns a path into a file: URI carrying the connection pragmas.
func dsn(dbPath string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	if dbPath != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Set("_txlock", "immediate")
	q.Set("_time_format", "sqlite")
	return "file:" + dbPath + "?" + q.Encode()
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	if err := db.conn.PingContext(ctx); err != nil {
		return apperror.Storage("sqlite: ping", err)
	}
	return nil
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, db.queryTimeout)
}

// inTx runs fn inside one transaction. fn's error is returned as-is after a
// rollback; begin and commit failures become storage errors.
func (db *DB) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.Storage("sqlite: "+op+": beginning transaction", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperror.Storage("sqlite: "+op+": committing", err)
	}
	return nil
}

// inReadTx runs fn inside a read-only transaction. The driver opens it with a
// plain deferred BEGIN, so every query in fn reads the same snapshot without
// taking the write lock.
func (db *DB) inReadTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return apperror.Storage("sqlite: "+op+": beginning transaction", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperror.Storage("sqlite: "+op+": committing", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY failure.
func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// primary code only: extended result codes were not reported
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}

// now is the timestamp written to every row. SQLite keeps whatever precision
// it is given; Postgres keeps microseconds, so both backends truncate alike.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			github_id  INTEGER NOT NULL UNIQUE,
			login      TEXT NOT NULL,
			email      TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// (user_id, item_type, item_id) is the dedup key for favorites.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS favorites (
			id        TEXT PRIMARY KEY,
			user_id   TEXT NOT NULL,
			item_type TEXT NOT NULL,
			item_id   TEXT NOT NULL,
			item_date TEXT,
			data      TEXT NOT NULL,
			saved_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_favorites_user_item
			ON favorites(user_id, item_type, item_id);
		CREATE INDEX IF NOT EXISTS idx_favorites_user_saved_at
			ON favorites(user_id, saved_at DESC, id DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating favorites table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_public   INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_collections_user_created_at
			ON collections(user_id, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating collections table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS collection_items (
			collection_id    TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			favorite_item_id TEXT NOT NULL REFERENCES favorites(id) ON DELETE CASCADE,
			added_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection_id, favorite_item_id)
		);
		CREATE INDEX IF NOT EXISTS idx_collection_items_favorite
			ON collection_items(favorite_item_id);
	`)
	if err != nil {
		return fmt.Errorf("creating collection_items table: %w", err)
	}

	return nil
}
