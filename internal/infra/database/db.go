package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const (
	defaultMaxOpenConns    = 5
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// NewConnection opens a database for driver ("postgres" or "sqlite3") and pings
// it to ensure connectivity.
func NewConnection(driver, dataSourceName string) (*sql.DB, error) {
	if _, err := DialectFor(driver); err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if driver == DriverSQLite {
		// Single writer; the busy timeout in the DSN covers concurrent processes.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
	}
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// SQLiteDSN builds a file DSN with foreign keys and a busy timeout, so separate
// notifier processes can share one database file.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
}
