package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/postgres/*.sql migrations/sqlite3/*.sql
var migrationFiles embed.FS

// migrationLogger adapts logrus to the migrate.Logger interface.
type migrationLogger struct {
	log *logrus.Entry
}

func (m *migrationLogger) Printf(format string, v ...any) {
	m.log.Info(strings.TrimRight(fmt.Sprintf(format, v...), "\n"))
}

func (m *migrationLogger) Verbose() bool { return false }

// Migrate applies all pending schema migrations for driver. The caller keeps
// ownership of db.
func Migrate(db *sql.DB, driver string, logger *logrus.Entry) error {
	var (
		instance database.Driver
		err      error
	)
	switch driver {
	case DriverPostgres:
		instance, err = postgres.WithInstance(db, &postgres.Config{})
	case DriverSQLite:
		instance, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, instance)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = &migrationLogger{log: logger}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("unable to determine current migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty state at version %d, manual intervention required", version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, err = m.Version()
	if err != nil {
		return fmt.Errorf("unable to determine migration version: %w", err)
	}
	logger.WithField("version", version).Info("Database schema is up to date")
	return nil
}
