// Package database provides the SQLite persistence layer for Junction
// Cloud Core.
//
// The database holds durable control-plane records: the gateway audit log
// and the schema migration history. In-memory state (live gateway registry,
// session store, stream bindings) never touches the database; only events
// worth keeping across restarts are written here.
//
// # Connection Management
//
// A single connection is used (SetMaxOpenConns(1)) to avoid SQLITE_BUSY
// contention. WAL mode is enabled by default so reads never block the
// writer. The database file is created with 0600 permissions.
//
// # Migrations
//
// Schema migrations are embedded into the binary via the migrations
// package, which hands its embed.FS to this package at init time:
//
//	database.MigrationsFS = embeddedFS
//	database.MigrationsDir = "."
//
// Migrate() applies pending migrations in version order, each in its own
// transaction, and records them in schema_migrations. A failed migration
// rolls back alone; re-running Migrate() resumes from the failure point.
//
// Migration files follow the naming convention:
//
//	YYYYMMDD_HHMMSS_description.up.sql
//	YYYYMMDD_HHMMSS_description.down.sql
package database
