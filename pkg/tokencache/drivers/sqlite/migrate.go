package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/tillsession/pkg/tokencache/drivers/sqlite/migrations"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrateUp brings db to the newest embedded schema and reports the
// resulting version. A database left dirty by an interrupted run is an
// error; the cache file can simply be deleted.
func migrateUp(db *sql.DB) (uint, error) {
	src, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return 0, fmt.Errorf("open embedded migrations: %w", err)
	}

	target, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		return 0, err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// SchemaVersion is the migration version the store was opened at.
func (s *Store) SchemaVersion() uint { return s.version }
