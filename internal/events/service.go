// Package events implements the rules for creating, editing and booking
// site events.
package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/magic-amatlan/backend/internal/storage"
	"github.com/magic-amatlan/backend/internal/storage/models"
)

// RoleAdmin is the only role allowed to manage events.
const RoleAdmin = "ADMIN"

// Actor identifies the caller of a mutating operation.
type Actor struct {
	UserID   string `json:"userId"`
	UserRole string `json:"userRole"`
}

// EventStore persists events.
type EventStore interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	GetBySlug(ctx context.Context, slug string) (*models.Event, error)
	List(ctx context.Context, includeInactive bool) ([]models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	SoftDelete(ctx context.Context, id string) error
}

// AttendeeStore persists registrations.
type AttendeeStore interface {
	Register(ctx context.Context, a *models.Attendee, capacity int) error
	ListByEvent(ctx context.Context, eventID string) ([]models.Attendee, error)
	UpdateStatus(ctx context.Context, eventID, id string, status models.AttendeeStatus) error
}

// CreateInput holds the fields of a new event.
type CreateInput struct {
	Title       string     `json:"title" validate:"required,min=3,max=200"`
	Slug        string     `json:"slug" validate:"omitempty,slug"`
	Description string     `json:"description" validate:"max=5000"`
	Category    string     `json:"category" validate:"required,category"`
	Location    string     `json:"location" validate:"max=200"`
	StartDate   *time.Time `json:"startDate" validate:"required"`
	EndDate     *time.Time `json:"endDate" validate:"required"`
	Capacity    int        `json:"capacity" validate:"gte=0"`
	Price       int64      `json:"price" validate:"gte=0"`
	Currency    string     `json:"currency" validate:"omitempty,len=3,uppercase"`
	ImageURL    string     `json:"imageUrl" validate:"omitempty,url"`
}

// UpdateInput holds the fields to change. Nil fields are left untouched.
type UpdateInput struct {
	Title       *string    `json:"title" validate:"omitempty,min=3,max=200"`
	Slug        *string    `json:"slug" validate:"omitempty,slug"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Category    *string    `json:"category" validate:"omitempty,category"`
	Location    *string    `json:"location" validate:"omitempty,max=200"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	Capacity    *int       `json:"capacity" validate:"omitempty,gte=0"`
	Price       *int64     `json:"price" validate:"omitempty,gte=0"`
	Currency    *string    `json:"currency" validate:"omitempty,len=3,uppercase"`
	ImageURL    *string    `json:"imageUrl" validate:"omitempty,url"`
	Active      *bool      `json:"active"`
}

// RegisterInput holds an attendee registration.
type RegisterInput struct {
	UserID string `json:"userId" validate:"required"`
	Name   string `json:"name" validate:"required,max=200"`
	Email  string `json:"email" validate:"required,email"`
}

// StatusInput changes a registration's status.
type StatusInput struct {
	Status string `json:"status" validate:"required,attendee_status"`
}

// Service applies the event rules on top of the stores.
type Service struct {
	events    EventStore
	attendees AttendeeStore
	observer  Observer
	validate  *validator.Validate
	now       func() time.Time
	logger    *zap.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithObserver sets the observer notified after every successful mutation.
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// NewService creates an event service.
func NewService(events EventStore, attendees AttendeeStore, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		events:    events,
		attendees: attendees,
		observer:  MultiObserver{},
		validate:  newValidator(),
		now:       time.Now,
		logger:    logger.Named("events"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns an event, active or not, with its attendees.
func (s *Service) Get(ctx context.Context, id string) (*models.EventWithAttendees, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	if e == nil {
		return nil, ErrNotFound
	}

	attendees, err := s.attendees.ListByEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting attendees: %w", err)
	}

	out := &models.EventWithAttendees{Event: *e, Attendees: attendees}
	for _, a := range attendees {
		if a.Status == models.AttendeeConfirmed {
			out.ConfirmedCount++
		}
	}
	return out, nil
}

// List returns the active events matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Event, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	all, err := s.events.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	out := make([]models.Event, 0, len(all))
	for _, e := range all {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	f.sort(out)
	return out, nil
}

// Create validates and stores a new event organized by the actor.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*models.Event, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	if err := check(s.validate, in); err != nil {
		return nil, err
	}
	if !in.EndDate.After(*in.StartDate) {
		return nil, newValidationError("endDate", "must be after startDate")
	}

	slug := in.Slug
	if slug == "" {
		slug = Slugify(in.Title)
		if slug == "" {
			return nil, newValidationError("slug", "cannot be derived from title")
		}
	}
	category, _ := models.ParseCategory(in.Category)
	currency := in.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}

	e := &models.Event{
		Title:       strings.TrimSpace(in.Title),
		Slug:        slug,
		Description: in.Description,
		Category:    category,
		Location:    in.Location,
		StartDate:   in.StartDate.UTC(),
		EndDate:     in.EndDate.UTC(),
		Capacity:    in.Capacity,
		Price:       in.Price,
		Currency:    currency,
		ImageURL:    in.ImageURL,
		OrganizerID: actor.UserID,
		Active:      true,
	}

	if err := s.events.Create(ctx, e); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, conflictf("slug %q is already in use", slug)
		}
		return nil, fmt.Errorf("creating event: %w", err)
	}

	s.logger.Info("event created", zap.String("id", e.ID), zap.String("slug", e.Slug), zap.String("by", actor.UserID))
	s.notify(models.EventCreated, *e)
	return e, nil
}

// Update applies the provided fields to an existing event.
func (s *Service) Update(ctx context.Context, id string, actor Actor, in UpdateInput) (*models.Event, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	if err := check(s.validate, in); err != nil {
		return nil, err
	}

	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	if e == nil {
		return nil, ErrNotFound
	}

	apply(e, in)
	if !e.EndDate.After(e.StartDate) {
		return nil, newValidationError("endDate", "must be after startDate")
	}

	if in.Slug != nil {
		other, err := s.events.GetBySlug(ctx, e.Slug)
		if err != nil {
			return nil, fmt.Errorf("checking slug: %w", err)
		}
		if other != nil && other.ID != e.ID {
			return nil, conflictf("slug %q is already in use", e.Slug)
		}
	}

	if err := s.events.Update(ctx, e); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			return nil, conflictf("slug %q is already in use", e.Slug)
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating event: %w", err)
	}

	s.logger.Info("event updated", zap.String("id", e.ID), zap.String("by", actor.UserID))
	s.notify(models.EventUpdated, *e)
	return e, nil
}

func apply(e *models.Event, in UpdateInput) {
	if in.Title != nil {
		e.Title = strings.TrimSpace(*in.Title)
	}
	if in.Slug != nil {
		e.Slug = *in.Slug
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Category != nil {
		e.Category, _ = models.ParseCategory(*in.Category)
	}
	if in.Location != nil {
		e.Location = *in.Location
	}
	if in.StartDate != nil {
		e.StartDate = in.StartDate.UTC()
	}
	if in.EndDate != nil {
		e.EndDate = in.EndDate.UTC()
	}
	if in.Capacity != nil {
		e.Capacity = *in.Capacity
	}
	if in.Price != nil {
		e.Price = *in.Price
	}
	if in.Currency != nil {
		e.Currency = *in.Currency
	}
	if in.ImageURL != nil {
		e.ImageURL = *in.ImageURL
	}
	if in.Active != nil {
		e.Active = *in.Active
	}
}

// Delete soft-deletes an event. Deleting an inactive event is a no-op.
func (s *Service) Delete(ctx context.Context, id string, actor Actor) (*models.Event, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}

	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	if e == nil {
		return nil, ErrNotFound
	}
	if !e.Active {
		return e, nil
	}

	if err := s.events.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("deleting event: %w", err)
	}
	e.Active = false
	e.UpdatedAt = s.now().UTC()

	s.logger.Info("event deleted", zap.String("id", id), zap.String("by", actor.UserID))
	s.notify(models.EventDeleted, *e)
	return e, nil
}

// Register books a place on an active event that has not ended.
func (s *Service) Register(ctx context.Context, eventID string, in RegisterInput) (*models.Attendee, error) {
	if err := check(s.validate, in); err != nil {
		return nil, err
	}

	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	if e == nil || !e.Active {
		return nil, ErrNotFound
	}
	if !e.EndDate.After(s.now()) {
		return nil, conflictf("event has already ended")
	}

	a := &models.Attendee{
		EventID: e.ID,
		UserID:  in.UserID,
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Status:  models.AttendeePending,
	}
	if err := s.attendees.Register(ctx, a, e.Capacity); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			return nil, conflictf("user %q is already registered", in.UserID)
		case errors.Is(err, storage.ErrCapacityReached):
			return nil, conflictf("event is full")
		}
		return nil, fmt.Errorf("registering attendee: %w", err)
	}

	s.logger.Info("attendee registered", zap.String("event", e.ID), zap.String("user", in.UserID))
	if o, ok := s.observer.(AttendeeObserver); ok {
		o.AttendeeRegistered(*e, *a)
	}
	return a, nil
}

// SetAttendeeStatus confirms or cancels a registration and returns the
// refreshed event.
func (s *Service) SetAttendeeStatus(ctx context.Context, eventID, attendeeID string, actor Actor, in StatusInput) (*models.EventWithAttendees, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	if err := check(s.validate, in); err != nil {
		return nil, err
	}

	err := s.attendees.UpdateStatus(ctx, eventID, attendeeID, models.AttendeeStatus(strings.ToUpper(in.Status)))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, storage.ErrCapacityReached):
		return nil, conflictf("event is full")
	case err != nil:
		return nil, fmt.Errorf("updating attendee: %w", err)
	}

	return s.Get(ctx, eventID)
}

func authorize(actor Actor) error {
	if strings.TrimSpace(actor.UserID) == "" {
		return ErrUnauthenticated
	}
	if actor.UserRole != RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func (s *Service) notify(kind models.ChangeKind, e models.Event) {
	if s.observer != nil {
		s.observer.EventChanged(models.EventChange{Kind: kind, Event: e})
	}
}

// sortKeys maps Filter.Sort values to orderings.
var sortKeys = map[string]func(a, b models.Event) bool{
	"date": func(a, b models.Event) bool {
		return a.StartDate.Before(b.StartDate)
	},
	"price": func(a, b models.Event) bool {
		return a.Price < b.Price
	},
	"title": func(a, b models.Event) bool {
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	},
}

func sortEvents(events []models.Event, key string, desc bool) {
	less := sortKeys[key]
	sort.SliceStable(events, func(i, j int) bool {
		if desc {
			return less(events[j], events[i])
		}
		return less(events[i], events[j])
	})
}
