// Package migrations embeds the SQL schema migrations into the binary.
//
// Files follow the naming convention YYYYMMDD_HHMMSS_description.up.sql
// (with an optional matching .down.sql) and are handed to the database
// package at init time so Migrate() can apply them without touching disk.
package migrations

import (
	"embed"

	"github.com/junctionlabs/junction-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
