package db

import "embed"

// MigrationFS embeds the SQL migrations from internal/db/migrations.
// The same files run against Postgres and SQLite.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
