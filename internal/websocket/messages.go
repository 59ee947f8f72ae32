package websocket

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/magic-amatlan/backend/internal/lunar"
	"github.com/magic-amatlan/backend/internal/storage/models"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypePhaseChanged MessageType = "lunar.phase_changed"
	TypeEventCreated MessageType = "event.created"
	TypeEventUpdated MessageType = "event.updated"
	TypeEventDeleted MessageType = "event.deleted"
	TypeNotification MessageType = "notification"

	// Client -> Server command types
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"

	// Server -> Client response types
	TypeSubscribeAck MessageType = "subscribe.ack"
	TypePong         MessageType = "pong"
	TypeError        MessageType = "error"
)

// Topic is the subscription group of a message type: the part before the
// first dot.
func (t MessageType) Topic() string {
	s := string(t)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// Command is a message sent by a client.
type Command struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PhaseChangedPayload is the payload for lunar.phase_changed events.
type PhaseChangedPayload struct {
	lunar.Descriptor
	Upcoming []lunar.Event `json:"upcoming"`
}

// EventPayload is the payload for event.created, event.updated and event.deleted.
type EventPayload struct {
	Event models.Event `json:"event"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string              `json:"level"` // info, warning, error, success
	Title       string              `json:"title"`
	Message     string              `json:"message"`
	Action      *NotificationAction `json:"action,omitempty"`
	Dismissible bool                `json:"dismissible"`
}

// NotificationAction is an optional action button for notifications.
type NotificationAction struct {
	Type  string `json:"type"` // "link"
	Label string `json:"label"`
	URL   string `json:"url"`
}

// SubscribePayload lists topics for subscribe and unsubscribe commands.
type SubscribePayload struct {
	Topics []string `json:"topics"`
}

// SubscribeAckPayload reports a client's subscriptions after a change.
type SubscribeAckPayload struct {
	Topics []string `json:"topics"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"originalType,omitempty"`
}
