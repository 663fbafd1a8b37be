package migrations

import (
	"database/sql"
)

func init() {
	Register(Migration{
		Version: 2,
		Name:    "pending_last_attempt",
		Up:      pendingLastAttempt,
	})
}

func pendingLastAttempt(db *sql.DB) error {
	return AddColumnIfNotExists(db, "pending_appointments", "last_attempt_at", "TEXT")
}
