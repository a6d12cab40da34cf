// Package testdb provides a migrated SQLite database for store tests.
package testdb

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"swadharma/backend/internal/db"
	"swadharma/backend/internal/db/migrate"
)

// New returns a freshly migrated database in t's temp dir. It is closed when the test ends.
func New(t testing.TB) *sqlx.DB {
	t.Helper()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "test.db")
	if err := migrate.Run(dsn, "up"); err != nil {
		t.Fatalf("testdb: migrate: %v", err)
	}
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("testdb: open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
