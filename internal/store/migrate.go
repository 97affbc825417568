package store

import (
	"database/sql"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/voyagen/confsync/internal/oops"
	"github.com/voyagen/confsync/migrations"
)

// RunMigrations applies every embedded migration not yet recorded in the
// database. dsn must be a postgres:// URL.
func RunMigrations(dsn string) error {
	m, err := newMigrate(dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.New(err, "failed to apply migrations")
	}
	return nil
}

// RollbackMigrations reverts every applied migration.
func RollbackMigrations(dsn string) error {
	m, err := newMigrate(dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.New(err, "failed to roll back migrations")
	}
	return nil
}

// MigrationVersion reports the current schema version. ok is false when no
// migration has been applied.
func MigrationVersion(dsn string) (version uint, dirty bool, ok bool, err error) {
	m, err := newMigrate(dsn)
	if err != nil {
		return 0, false, false, err
	}
	defer m.Close()
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, oops.New(err, "failed to read migration version")
	}
	return version, dirty, true, nil
}

// newMigrate pairs the embedded migrations with a lib/pq connection. Closing
// the returned Migrate closes the connection.
func newMigrate(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, oops.New(err, "failed to open embedded migrations")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, oops.New(err, "failed to open migration connection")
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, oops.New(err, "failed to connect for migrations")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		return nil, oops.New(err, "failed to initialize migrations")
	}
	return m, nil
}
