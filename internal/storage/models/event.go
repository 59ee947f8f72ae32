// Package models defines data structures for storage entities.
package models

import (
	"strings"
	"time"
)

// Category classifies an event on the site.
type Category string

// Event categories.
const (
	CategoryCeremony  Category = "CEREMONY"
	CategoryRetreat   Category = "RETREAT"
	CategoryWorkshop  Category = "WORKSHOP"
	CategoryTemazcal  Category = "TEMAZCAL"
	CategoryNature    Category = "NATURE"
	CategoryCommunity Category = "COMMUNITY"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryCeremony,
	CategoryRetreat,
	CategoryWorkshop,
	CategoryTemazcal,
	CategoryNature,
	CategoryCommunity,
}

// ParseCategory matches a category case-insensitively.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// DefaultCurrency is applied when an event does not name one.
const DefaultCurrency = "MXN"

// Event is a bookable ceremony, retreat or workshop.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Location    string    `json:"location"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Capacity    int       `json:"capacity"` // 0 = unlimited
	Price       int64     `json:"price"`    // minor units
	Currency    string    `json:"currency"`
	ImageURL    string    `json:"imageUrl"`
	OrganizerID string    `json:"organizerId"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AttendeeStatus is the state of a registration.
type AttendeeStatus string

// Attendee statuses.
const (
	AttendeePending   AttendeeStatus = "PENDING"
	AttendeeConfirmed AttendeeStatus = "CONFIRMED"
	AttendeeCancelled AttendeeStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s AttendeeStatus) Valid() bool {
	switch s {
	case AttendeePending, AttendeeConfirmed, AttendeeCancelled:
		return true
	}
	return false
}

// Attendee is one user's registration for an event.
type Attendee struct {
	ID        string         `json:"id"`
	EventID   string         `json:"eventId"`
	UserID    string         `json:"userId"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Status    AttendeeStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

// EventWithAttendees combines an event with its registrations.
type EventWithAttendees struct {
	Event
	Attendees      []Attendee `json:"attendees"`
	ConfirmedCount int        `json:"confirmedCount"`
}

// ChangeKind names a mutation applied to an event.
type ChangeKind string

// Event change kinds.
const (
	EventCreated ChangeKind = "created"
	EventUpdated ChangeKind = "updated"
	EventDeleted ChangeKind = "deleted"
)

// EventChange describes a mutation for observers such as the websocket hub.
type EventChange struct {
	Kind  ChangeKind `json:"kind"`
	Event Event      `json:"event"`
}
