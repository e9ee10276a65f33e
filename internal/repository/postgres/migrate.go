package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// withMigrate runs fn against a migrator borrowing one pool connection. The
// migrator and its database/sql wrapper are closed before returning so the
// connection goes back to the pool; pgxpool.Close waits for every borrowed
// connection.
func (db *DB) withMigrate(fn func(m *migrate.Migrate) error) (err error) {
	sqlDB := sql.OpenDB(stdlib.GetPoolConnector(db.pool))
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("postgres: closing migration connection: %w", cerr)
		}
	}()

	driver, err := migratepgx.WithInstance(sqlDB, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("postgres: migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return fmt.Errorf("postgres: migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		src.Close()
		driver.Close()
		return fmt.Errorf("postgres: migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil {
			if cerr := errors.Join(srcErr, dbErr); cerr != nil {
				err = fmt.Errorf("postgres: closing migrator: %w", cerr)
			}
		}
	}()

	return fn(m)
}

// MigrateUp applies every pending migration. Running it on an up-to-date
// schema is a no-op.
func (db *DB) MigrateUp() error {
	return db.withMigrate(func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("postgres: migrating up: %w", err)
		}
		return nil
	})
}

// MigrateDown drops the whole schema. Tests use it to start from scratch.
func (db *DB) MigrateDown() error {
	return db.withMigrate(func(m *migrate.Migrate) error {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("postgres: migrating down: %w", err)
		}
		return nil
	})
}
