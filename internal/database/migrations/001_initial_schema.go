package migrations

import (
	"database/sql"
)

func init() {
	Register(Migration{
		Version: 1,
		Name:    "initial_schema",
		Up:      initialSchema,
	})
}

func initialSchema(db *sql.DB) error {
	statements := []string{
		// Generic key/value settings
		`CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Single-row calendar credential, tokens encrypted at rest
		`CREATE TABLE IF NOT EXISTS calendar_credentials (
			id INTEGER PRIMARY KEY CHECK(id = 1),
			access_token_encrypted BLOB,
			refresh_token_encrypted BLOB NOT NULL,
			expiry TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Bookings waiting for the calendar to become reachable
		`CREATE TABLE IF NOT EXISTS pending_appointments (
			id TEXT PRIMARY KEY,
			request_json TEXT NOT NULL,
			enqueued_at TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_enqueued ON pending_appointments(enqueued_at)`,

		// Append-only log of reconciled bookings
		`CREATE TABLE IF NOT EXISTS processed_appointments (
			pending_id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			link TEXT,
			request_json TEXT NOT NULL,
			enqueued_at TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			processed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_processed_at ON processed_appointments(processed_at)`,

		// Qualified leads captured by the concierge
		`CREATE TABLE IF NOT EXISTS contact_submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			company TEXT NOT NULL,
			role TEXT NOT NULL,
			objectives TEXT NOT NULL,
			challenges TEXT NOT NULL,
			message TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contact_email ON contact_submissions(email)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
