package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magic-amatlan/backend/internal/storage/models"
)

// AttendeeRepository handles database operations for event registrations.
type AttendeeRepository struct {
	db  *DB
	now func() time.Time
}

// NewAttendeeRepository creates a new attendee repository.
func NewAttendeeRepository(db *DB) *AttendeeRepository {
	return &AttendeeRepository{db: db, now: time.Now}
}

// Register inserts an attendee if the event still has room. Cancelled
// registrations do not count against capacity; capacity 0 is unlimited.
// A user whose registration was cancelled may register again, which
// reactivates the existing row under its original ID.
// Returns ErrDuplicate if the user is already registered and
// ErrCapacityReached if the event is full.
func (r *AttendeeRepository) Register(ctx context.Context, a *models.Attendee, capacity int) error {
	if a.Status == "" {
		a.Status = models.AttendeePending
	}
	a.CreatedAt = r.now().UTC()

	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		var (
			existingID     string
			existingStatus models.AttendeeStatus
		)
		err := tx.QueryRowContext(ctx,
			`SELECT id, status FROM event_attendees WHERE event_id = ? AND user_id = ?`,
			a.EventID, a.UserID).Scan(&existingID, &existingStatus)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return fmt.Errorf("checking registration: %w", err)
		case existingStatus != models.AttendeeCancelled:
			return ErrDuplicate
		}

		if err := checkCapacity(ctx, tx, a.EventID, capacity); err != nil {
			return err
		}

		if existingID != "" {
			a.ID = existingID
			_, err := tx.ExecContext(ctx, `
				UPDATE event_attendees SET name = ?, email = ?, status = ?, created_at = ?
				WHERE id = ?
			`, a.Name, a.Email, a.Status, a.CreatedAt, a.ID)
			if err != nil {
				return fmt.Errorf("reactivating attendee: %w", err)
			}
			return nil
		}

		if a.ID == "" {
			a.ID = GenerateID()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO event_attendees (id, event_id, user_id, name, email, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, a.ID, a.EventID, a.UserID, a.Name, a.Email, a.Status, a.CreatedAt)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("inserting attendee: %w", err)
		}
		return nil
	})
}

// ListByEvent returns an event's attendees in registration order.
func (r *AttendeeRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Attendee, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, user_id, name, email, status, created_at
		FROM event_attendees WHERE event_id = ?
		ORDER BY created_at, rowid
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing attendees: %w", err)
	}
	defer rows.Close()

	attendees := []models.Attendee{}
	for rows.Next() {
		var a models.Attendee
		if err := rows.Scan(&a.ID, &a.EventID, &a.UserID, &a.Name, &a.Email, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning attendee: %w", err)
		}
		attendees = append(attendees, a)
	}
	return attendees, rows.Err()
}

// UpdateStatus changes the status of one of an event's registrations.
// Moving a cancelled registration back to an active status takes a place,
// so it returns ErrCapacityReached when the event is full.
func (r *AttendeeRepository) UpdateStatus(ctx context.Context, eventID, id string, status models.AttendeeStatus) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		var (
			current  models.AttendeeStatus
			capacity int
		)
		err := tx.QueryRowContext(ctx, `
			SELECT a.status, e.capacity
			FROM event_attendees a JOIN events e ON e.id = a.event_id
			WHERE a.id = ? AND a.event_id = ?
		`, id, eventID).Scan(&current, &capacity)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("getting attendee: %w", err)
		}

		if current == models.AttendeeCancelled && status != models.AttendeeCancelled {
			if err := checkCapacity(ctx, tx, eventID, capacity); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE event_attendees SET status = ? WHERE id = ? AND event_id = ?`, status, id, eventID)
		if err != nil {
			return fmt.Errorf("updating attendee status: %w", err)
		}
		return affectedOne(res)
	})
}

// checkCapacity returns ErrCapacityReached if the event has no free place.
func checkCapacity(ctx context.Context, q Queryable, eventID string, capacity int) error {
	if capacity <= 0 {
		return nil
	}
	taken, err := countActive(ctx, q, eventID)
	if err != nil {
		return err
	}
	if taken >= capacity {
		return ErrCapacityReached
	}
	return nil
}

func countActive(ctx context.Context, q Queryable, eventID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM event_attendees WHERE event_id = ? AND status != ?
	`, eventID, models.AttendeeCancelled).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting attendees: %w", err)
	}
	return n, nil
}
