package websocket

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// knownTopics are the subscription groups clients may choose from.
var knownTopics = map[string]bool{
	TypePhaseChanged.Topic(): true,
	TypeEventCreated.Topic(): true,
	TypeNotification.Topic(): true,
}

// HandleCommand processes a raw message received from a client and queues
// any response for that client.
func (h *Hub) HandleCommand(client *Client, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		h.replyError(client, "invalid_message", "message is not valid JSON", "")
		return
	}

	switch cmd.Type {
	case TypePing:
		h.replyMessage(client, NewMessage(TypePong, nil))

	case TypeSubscribe, TypeUnsubscribe:
		var payload SubscribePayload
		if len(cmd.Payload) > 0 {
			if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
				h.replyError(client, "invalid_payload", "payload must list topics", string(cmd.Type))
				return
			}
		}
		for i, t := range payload.Topics {
			t = strings.ToLower(strings.TrimSpace(t))
			payload.Topics[i] = t
			if !knownTopics[t] {
				h.replyError(client, "unknown_topic", "unknown topic "+t, string(cmd.Type))
				return
			}
		}

		if cmd.Type == TypeSubscribe {
			client.Subscribe(payload.Topics...)
		} else {
			client.Unsubscribe(payload.Topics...)
		}
		h.replyMessage(client, NewMessage(TypeSubscribeAck, SubscribeAckPayload{Topics: client.Topics()}))

	default:
		h.replyError(client, "unknown_command", "unsupported message type", string(cmd.Type))
	}
}

func (h *Hub) replyError(client *Client, code, message, original string) {
	h.replyMessage(client, NewMessage(TypeError, ErrorPayload{
		Code:         code,
		Message:      message,
		OriginalType: original,
	}))
}

func (h *Hub) replyMessage(client *Client, msg Message) {
	data, err := msg.JSON()
	if err != nil {
		h.logger.Error("encoding reply", zap.Error(err))
		return
	}
	h.Reply(client, data)
}
