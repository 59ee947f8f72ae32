package websocket

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/magic-amatlan/backend/internal/lunar"
	"github.com/magic-amatlan/backend/internal/storage/models"
)

// EventBroadcaster turns domain changes into WebSocket messages.
type EventBroadcaster struct {
	hub    *Hub
	logger *zap.Logger
	namer  lunar.Namer

	maxResults  int
	horizonDays int
	loc         *time.Location
}

// NewEventBroadcaster creates a new event broadcaster. namer may be nil for
// English phase names.
func NewEventBroadcaster(hub *Hub, namer lunar.Namer, loc *time.Location, logger *zap.Logger) *EventBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &EventBroadcaster{
		hub:         hub,
		logger:      logger.Named("websocket.broadcaster"),
		namer:       namer,
		maxResults:  lunar.DefaultMaxResults,
		horizonDays: lunar.DefaultHorizonDays,
		loc:         loc,
	}
}

// BroadcastPhaseChanged sends a lunar.phase_changed event with the next
// principal phases. It matches lunar.PublishFunc.
func (b *EventBroadcaster) BroadcastPhaseChanged(d lunar.Descriptor) {
	from := time.Now().In(b.loc)
	payload := PhaseChangedPayload{
		Descriptor: d.Localized(b.namer),
		Upcoming:   lunar.UpcomingPrincipalPhases(from, b.maxResults, b.horizonDays),
	}
	b.broadcast(NewMessage(TypePhaseChanged, payload))
}

// EventChanged sends event.created, event.updated or event.deleted.
func (b *EventBroadcaster) EventChanged(change models.EventChange) {
	var msgType MessageType
	switch change.Kind {
	case models.EventCreated:
		msgType = TypeEventCreated
	case models.EventUpdated:
		msgType = TypeEventUpdated
	case models.EventDeleted:
		msgType = TypeEventDeleted
	default:
		b.logger.Warn("ignoring unknown event change", zap.String("kind", string(change.Kind)))
		return
	}
	b.broadcast(NewMessage(msgType, EventPayload{Event: change.Event}))
}

// AttendeeRegistered announces a new booking without exposing who made it.
func (b *EventBroadcaster) AttendeeRegistered(event models.Event, _ models.Attendee) {
	b.BroadcastNotification("info", "New registration", fmt.Sprintf("A place was booked for %s.", event.Title))
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	payload := NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}
	b.broadcast(NewMessage(TypeNotification, payload))
}

func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		b.logger.Error("encoding websocket message", zap.String("type", string(msg.Type)), zap.Error(err))
		return
	}
	b.hub.Broadcast(msg.Type, data)
}
