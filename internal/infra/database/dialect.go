package database

import (
	"fmt"
	"strconv"
)

// Dialect hides the SQL differences between the supported drivers.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string
	// DateParam casts the n-th argument, passed as YYYY-MM-DD text, to a date.
	DateParam(n int) string
	// DateText renders a date column as YYYY-MM-DD text.
	DateText(column string) string
	// Quote quotes a validated identifier.
	Quote(ident string) string
}

// DialectFor returns the dialect of a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres:
		return postgresDialect{}, nil
	case DriverSQLite:
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string             { return DriverPostgres }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgresDialect) DateParam(n int) string   { return "CAST($" + strconv.Itoa(n) + " AS DATE)" }
func (postgresDialect) DateText(column string) string {
	return "to_char(" + column + ", 'YYYY-MM-DD')"
}
func (postgresDialect) Quote(ident string) string { return `"` + ident + `"` }

type sqliteDialect struct{}

func (sqliteDialect) Name() string           { return DriverSQLite }
func (sqliteDialect) Placeholder(int) string { return "?" }
func (sqliteDialect) DateParam(int) string   { return "date(?)" }
func (sqliteDialect) DateText(column string) string {
	return "strftime('%Y-%m-%d', " + column + ")"
}
func (sqliteDialect) Quote(ident string) string { return `"` + ident + `"` }
