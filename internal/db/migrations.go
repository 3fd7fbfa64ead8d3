package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order. Version 1 is the
// schema in SchemaSQL; later versions alter it.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "outbox_dedupe_index",
		Up:      migrationV2,
	},
}

// LatestVersion is the schema version a fully migrated database reports.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// CurrentVersion returns the highest applied migration version.
func CurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return version, nil
}

// RunMigrations executes all pending migrations and returns the ones applied.
func RunMigrations(db *sql.DB) ([]Migration, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	currentVersion, err := CurrentVersion(db)
	if err != nil {
		return nil, err
	}

	var applied []Migration
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return applied, fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		applied = append(applied, migration)
	}

	return applied, nil
}

// migrationV1 creates the base tables.
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(baseSchemaSQL)
	return err
}

// migrationV2 backs outbox dedupe lookups with an index.
func migrationV2(tx *sql.Tx) error {
	_, err := tx.Exec(outboxDedupeIndexSQL)
	return err
}
