package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/omriShneor/project_concierge/internal/booking"
)

// ErrPendingNotFound is returned when a pending appointment was already
// completed or never existed.
var ErrPendingNotFound = errors.New("pending appointment not found")

// InsertPending stores a booking that could not be written to the calendar
func (d *DB) InsertPending(ctx context.Context, p booking.PendingAppointment) error {
	req, err := json.Marshal(p.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	_, err = d.ExecContext(ctx, `
		INSERT INTO pending_appointments (id, request_json, enqueued_at, attempts, last_error)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, string(req), formatTime(p.EnqueuedAt), p.Attempts, nullString(p.LastError))
	if err != nil {
		return fmt.Errorf("failed to insert pending appointment: %w", err)
	}
	return nil
}

// ListPending returns pending appointments oldest first
func (d *DB) ListPending(ctx context.Context) ([]booking.PendingAppointment, error) {
	rows, err := d.QueryContext(ctx, `
		SELECT id, request_json, enqueued_at, attempts, last_error
		FROM pending_appointments
		ORDER BY enqueued_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending appointments: %w", err)
	}
	defer rows.Close()

	var out []booking.PendingAppointment
	for rows.Next() {
		var p booking.PendingAppointment
		var reqJSON, enqueuedAt string
		var lastError sql.NullString
		if err := rows.Scan(&p.ID, &reqJSON, &enqueuedAt, &p.Attempts, &lastError); err != nil {
			return nil, fmt.Errorf("failed to scan pending appointment: %w", err)
		}
		if err := json.Unmarshal([]byte(reqJSON), &p.Request); err != nil {
			return nil, fmt.Errorf("failed to decode pending appointment %s: %w", p.ID, err)
		}
		if p.EnqueuedAt, err = parseTime(enqueuedAt); err != nil {
			return nil, fmt.Errorf("failed to parse enqueued_at for %s: %w", p.ID, err)
		}
		p.LastError = lastError.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountPending returns the number of pending appointments
func (d *DB) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := d.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_appointments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending appointments: %w", err)
	}
	return n, nil
}

// CountProcessed returns the size of the processed log
func (d *DB) CountProcessed(ctx context.Context) (int, error) {
	var n int
	if err := d.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_appointments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count processed appointments: %w", err)
	}
	return n, nil
}

// RecordPendingAttempt bumps the attempt counter after a failed write
func (d *DB) RecordPendingAttempt(ctx context.Context, id, lastError string) error {
	res, err := d.ExecContext(ctx, `
		UPDATE pending_appointments
		SET attempts = attempts + 1, last_error = ?, last_attempt_at = ?
		WHERE id = ?
	`, nullString(lastError), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPendingNotFound
	}
	return nil
}

// CompletePending moves a pending appointment into the processed log.
// Both writes happen in one transaction so an entry is never in both places.
func (d *DB) CompletePending(ctx context.Context, rec booking.ProcessedAppointment) error {
	req, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM pending_appointments WHERE id = ?`, rec.PendingID)
	if err != nil {
		return fmt.Errorf("failed to delete pending appointment: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrPendingNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO processed_appointments (pending_id, event_id, link, request_json, enqueued_at, attempts, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.PendingID, rec.EventID, nullString(rec.Link), string(req),
		formatTime(rec.EnqueuedAt), rec.Attempts, formatTime(rec.ProcessedAt))
	if err != nil {
		return fmt.Errorf("failed to insert processed appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ListProcessed returns the most recently processed appointments first
func (d *DB) ListProcessed(ctx context.Context, limit int) ([]booking.ProcessedAppointment, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.QueryContext(ctx, `
		SELECT pending_id, event_id, link, request_json, enqueued_at, attempts, processed_at
		FROM processed_appointments
		ORDER BY processed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed appointments: %w", err)
	}
	defer rows.Close()

	var out []booking.ProcessedAppointment
	for rows.Next() {
		var p booking.ProcessedAppointment
		var link sql.NullString
		var reqJSON, enqueuedAt, processedAt string
		if err := rows.Scan(&p.PendingID, &p.EventID, &link, &reqJSON, &enqueuedAt, &p.Attempts, &processedAt); err != nil {
			return nil, fmt.Errorf("failed to scan processed appointment: %w", err)
		}
		if err := json.Unmarshal([]byte(reqJSON), &p.Request); err != nil {
			return nil, fmt.Errorf("failed to decode processed appointment %s: %w", p.PendingID, err)
		}
		if p.EnqueuedAt, err = parseTime(enqueuedAt); err != nil {
			return nil, err
		}
		if p.ProcessedAt, err = parseTime(processedAt); err != nil {
			return nil, err
		}
		p.Link = link.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
