// Package db opens the relational store. Postgres is used in production and SQLite for
// local development and store tests; both run the same SQL.
package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	schemePostgres   = "postgres://"
	schemePostgresQL = "postgresql://"
	schemeSQLite     = "sqlite://"

	sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know; it takes ? placeholders.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// ErrUnsupportedDSN is returned when the DSN scheme is neither postgres nor sqlite.
var ErrUnsupportedDSN = errors.New("db: DATABASE_URL must start with postgres:// or sqlite://")

// Open opens and pings the database named by dsn. Caller must call Close when done.
// sqlite://path opens a modernc SQLite file with foreign keys enforced.
func Open(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, errors.New("db: DATABASE_URL is not set")
	}
	driver, source, err := driverFor(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// Single writer; transactions would otherwise fail with SQLITE_BUSY under concurrent upgrades.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetConnMaxIdleTime(5 * time.Minute)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func driverFor(dsn string) (driver, source string, err error) {
	switch {
	case strings.HasPrefix(dsn, schemePostgres), strings.HasPrefix(dsn, schemePostgresQL):
		return "pgx", dsn, nil
	case strings.HasPrefix(dsn, schemeSQLite):
		path := strings.TrimPrefix(dsn, schemeSQLite)
		if path == "" {
			return "", "", fmt.Errorf("db: sqlite DSN %q has no path", dsn)
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return "sqlite", "file:" + path + sep + sqlitePragmas, nil
	default:
		return "", "", ErrUnsupportedDSN
	}
}
