package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for a fresh database.
// This schema reflects the current state after all migrations.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Repository
// tests build their in-memory databases from GetSchemaSQL(), so a repository
// referencing a column that does not exist here fails with "no such column"
// at test time rather than in production.
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update the SQL here
//  3. Run the repository tests to verify alignment
const SchemaSQL = baseSchemaSQL + outboxDedupeIndexSQL

const baseSchemaSQL = `
-- Instructions (one row per client instruction reference)
CREATE TABLE IF NOT EXISTS instructions (
	instruction_ref TEXT PRIMARY KEY,
	stage TEXT NOT NULL CHECK(stage IN ('in_progress', 'completed', 're-visit')) DEFAULT 'in_progress',
	internal_status TEXT CHECK(internal_status IS NULL OR internal_status IN ('pitch', 'poid', 'paid')),

	title TEXT,
	first_name TEXT,
	last_name TEXT,
	nationality TEXT,
	nationality_alpha2 TEXT,
	dob TEXT,
	gender TEXT,
	phone TEXT,
	email TEXT,
	passport_number TEXT,
	drivers_license_number TEXT,
	id_type TEXT,

	house_number TEXT,
	street TEXT,
	city TEXT,
	county TEXT,
	postcode TEXT,
	country TEXT,
	country_code TEXT,

	company_name TEXT,
	company_number TEXT,
	company_house_number TEXT,
	company_street TEXT,
	company_city TEXT,
	company_county TEXT,
	company_postcode TEXT,
	company_country TEXT,
	company_country_code TEXT,

	client_type TEXT,
	area_of_work TEXT,
	work_type TEXT,
	solicitor_id TEXT,
	notes TEXT,
	consent_given TEXT,

	payment_method TEXT,
	payment_result TEXT,
	payment_amount TEXT,
	payment_product TEXT,
	payment_timestamp TEXT,

	payment_disabled INTEGER NOT NULL DEFAULT 0,
	poid_date TEXT,

	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_instructions_internal_status ON instructions(internal_status);

-- Deals (owned by the pitch subsystem)
CREATE TABLE IF NOT EXISTS deals (
	deal_id INTEGER PRIMARY KEY AUTOINCREMENT,
	prospect_id TEXT NOT NULL,
	linked_prospect_id TEXT,
	passcode TEXT NOT NULL,
	amount REAL,
	area_of_work TEXT,
	service_description TEXT,
	pitched_by TEXT,
	status TEXT NOT NULL CHECK(status IN ('open', 'closed')) DEFAULT 'open',
	instruction_ref TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_deals_prospect ON deals(prospect_id);
CREATE INDEX IF NOT EXISTS idx_deals_passcode ON deals(passcode);
CREATE INDEX IF NOT EXISTS idx_deals_instruction ON deals(instruction_ref);

-- Payments (written only by the payment service)
CREATE TABLE IF NOT EXISTS payments (
	id TEXT PRIMARY KEY,
	payment_intent_id TEXT NOT NULL UNIQUE,
	amount INTEGER NOT NULL,
	currency TEXT NOT NULL,
	status TEXT NOT NULL,
	internal_status TEXT NOT NULL CHECK(internal_status IN ('pending', 'processing', 'paid', 'failed')),
	instruction_ref TEXT NOT NULL,
	product TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_payments_instruction ON payments(instruction_ref);

-- ID verification responses
CREATE TABLE IF NOT EXISTS id_verifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	instruction_ref TEXT NOT NULL,
	provider TEXT NOT NULL,
	overall_result TEXT,
	raw_response TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_id_verifications_instruction ON id_verifications(instruction_ref);

-- Outbox (durable side-effect queue)
CREATE TABLE IF NOT EXISTS outbox_tasks (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	instruction_ref TEXT NOT NULL,
	payload TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('queued', 'sending', 'sent', 'failed')) DEFAULT 'queued',
	attempts INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 1,
	next_attempt_at TEXT NOT NULL,
	dedupe_key TEXT,
	locked_at TEXT,
	last_error TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_outbox_due ON outbox_tasks(status, next_attempt_at);
CREATE INDEX IF NOT EXISTS idx_outbox_instruction ON outbox_tasks(instruction_ref);
`

const outboxDedupeIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_outbox_dedupe ON outbox_tasks(dedupe_key, status);
`

// InitSchema creates the schema on a fresh database, or runs pending
// migrations on an existing one.
func InitSchema(db *sql.DB) error {
	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		_, err := RunMigrations(db)
		return err
	}

	// Fresh install - create the current schema directly and mark every
	// migration as applied.
	if _, err := db.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return err
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
