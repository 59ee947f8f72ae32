package events

import "github.com/magic-amatlan/backend/internal/storage/models"

// Observer is notified after an event is created, updated or deleted.
type Observer interface {
	EventChanged(change models.EventChange)
}

// AttendeeObserver is optionally implemented by observers that want to hear
// about new registrations.
type AttendeeObserver interface {
	AttendeeRegistered(event models.Event, attendee models.Attendee)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(models.EventChange)

// EventChanged calls f.
func (f ObserverFunc) EventChanged(change models.EventChange) { f(change) }

// MultiObserver fans a change out to several observers in order.
type MultiObserver []Observer

// EventChanged notifies every observer.
func (m MultiObserver) EventChanged(change models.EventChange) {
	for _, o := range m {
		if o != nil {
			o.EventChanged(change)
		}
	}
}

// AttendeeRegistered notifies every observer that implements AttendeeObserver.
func (m MultiObserver) AttendeeRegistered(event models.Event, attendee models.Attendee) {
	for _, o := range m {
		if ao, ok := o.(AttendeeObserver); ok {
			ao.AttendeeRegistered(event, attendee)
		}
	}
}
