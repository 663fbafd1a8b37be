package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/omriShneor/project_concierge/internal/booking"
)

// ContactSubmission is a stored lead
type ContactSubmission struct {
	ID        int64               `json:"id"`
	Contact   booking.ContactInfo `json:"contact"`
	CreatedAt time.Time           `json:"created_at"`
}

// SaveContact stores a validated contact and returns its row ID
func (d *DB) SaveContact(ctx context.Context, c booking.ContactInfo) (int64, error) {
	res, err := d.ExecContext(ctx, `
		INSERT INTO contact_submissions (name, email, company, role, objectives, challenges, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.Name, c.Email, c.Company, c.Role, c.Objectives, c.Challenges, nullString(c.Message))
	if err != nil {
		return 0, fmt.Errorf("failed to save contact: %w", err)
	}
	return res.LastInsertId()
}

// ListContacts returns the most recent contacts first
func (d *DB) ListContacts(ctx context.Context, limit int) ([]ContactSubmission, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.QueryContext(ctx, `
		SELECT id, name, email, company, role, objectives, challenges, message, created_at
		FROM contact_submissions
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var out []ContactSubmission
	for rows.Next() {
		var s ContactSubmission
		var message sql.NullString
		c := &s.Contact
		if err := rows.Scan(&s.ID, &c.Name, &c.Email, &c.Company, &c.Role, &c.Objectives, &c.Challenges, &message, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		c.Message = message.String
		out = append(out, s)
	}
	return out, rows.Err()
}
