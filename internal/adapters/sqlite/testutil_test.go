// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB()
// and the seed* helpers instead.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/intake/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// This is the single shared test database setup function for all repository tests.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// every connection to :memory: is a separate database
	testDB.SetMaxOpenConns(1)

	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedDeal inserts a test deal and returns its ID.
func seedDeal(t *testing.T, db *sql.DB, prospectID, linkedProspectID, passcode, serviceDescription string) int64 {
	t.Helper()
	var linked sql.NullString
	if linkedProspectID != "" {
		linked = sql.NullString{String: linkedProspectID, Valid: true}
	}
	result, err := db.Exec(
		`INSERT INTO deals (prospect_id, linked_prospect_id, passcode, amount, area_of_work, service_description, pitched_by, status)
		 VALUES (?, ?, ?, 1200, 'commercial', ?, 'AC', 'open')`,
		prospectID, linked, passcode, serviceDescription,
	)
	if err != nil {
		t.Fatalf("failed to seed deal: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

// seedInstruction inserts a minimal instruction.
func seedInstruction(t *testing.T, db *sql.DB, ref, stage, status string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO instructions (instruction_ref, stage, internal_status) VALUES (?, ?, ?)",
		ref, stage, status,
	)
	if err != nil {
		t.Fatalf("failed to seed instruction: %v", err)
	}
}
