package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magic-amatlan/backend/internal/storage/models"
)

const eventColumns = `id, title, slug, description, category, location, start_date, end_date,
	capacity, price, currency, image_url, organizer_id, active, created_at, updated_at`

// EventRepository handles database operations for events.
type EventRepository struct {
	db  *DB
	now func() time.Time
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db, now: time.Now}
}

// Create inserts a new event. A slug collision returns ErrDuplicate.
func (r *EventRepository) Create(ctx context.Context, e *models.Event) error {
	if e.ID == "" {
		e.ID = GenerateID()
	}
	e.CreatedAt = r.now().UTC()
	e.UpdatedAt = e.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Title, e.Slug, e.Description, e.Category, e.Location,
		e.StartDate.UTC(), e.EndDate.UTC(), e.Capacity, e.Price, e.Currency,
		e.ImageURL, e.OrganizerID, e.Active, e.CreatedAt, e.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// GetByID retrieves an event by ID, active or not. Returns nil if missing.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	return r.getOne(ctx, "id", id)
}

// GetBySlug retrieves an event by slug. Returns nil if missing.
func (r *EventRepository) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return r.getOne(ctx, "slug", slug)
}

func (r *EventRepository) getOne(ctx context.Context, column, value string) (*models.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE `+column+` = ?`, value)

	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting event by %s: %w", column, err)
	}
	return e, nil
}

// List returns events ordered by start date. Inactive events are skipped
// unless includeInactive is set.
func (r *EventRepository) List(ctx context.Context, includeInactive bool) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	if !includeInactive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY start_date, title`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Update writes every mutable column of e. A slug collision returns
// ErrDuplicate and a missing row ErrNotFound.
func (r *EventRepository) Update(ctx context.Context, e *models.Event) error {
	e.UpdatedAt = r.now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE events SET
			title = ?, slug = ?, description = ?, category = ?, location = ?,
			start_date = ?, end_date = ?, capacity = ?, price = ?, currency = ?,
			image_url = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, e.Title, e.Slug, e.Description, e.Category, e.Location,
		e.StartDate.UTC(), e.EndDate.UTC(), e.Capacity, e.Price, e.Currency,
		e.ImageURL, e.Active, e.UpdatedAt, e.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("updating event: %w", err)
	}
	return affectedOne(res)
}

// SoftDelete marks an event inactive. The row and its attendees remain.
func (r *EventRepository) SoftDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET active = 0, updated_at = ? WHERE id = ?`, r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivating event: %w", err)
	}
	return affectedOne(res)
}

func scanEvent(s rowScanner) (*models.Event, error) {
	var e models.Event
	if err := s.Scan(&e.ID, &e.Title, &e.Slug, &e.Description, &e.Category, &e.Location,
		&e.StartDate, &e.EndDate, &e.Capacity, &e.Price, &e.Currency, &e.ImageURL,
		&e.OrganizerID, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
