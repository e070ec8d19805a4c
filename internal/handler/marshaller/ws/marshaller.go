package wsmarshaller

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/webitel/user-admin-client/internal/domain/event"
	"github.com/webitel/user-admin-client/internal/handler/marshaller"
)

// WSEvent is a generic wrapper for WebSocket messages to provide consistent structure
type WSEvent struct {
	Event   string `json:"event"` // "inbound_event", "status_changed", "notification"
	ID      string `json:"id"`
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload"`
}

// MarshallEnvelope prepares a bus envelope for WebSocket transmission.
func MarshallEnvelope(env event.Envelope) ([]byte, error) {
	res := &WSEvent{
		SentAt: time.Now().UnixMilli(),
	}

	switch env.Type {
	case event.EnvelopeEvent:
		res.Event = "inbound_event"
		if env.Event != nil {
			res.ID = strconv.FormatUint(env.Event.ID, 10)
			res.Payload = marshaller.MarshallDeliveryEvent(*env.Event)
		}
	case event.EnvelopeStatus:
		res.Event = "status_changed"
		res.Payload = env.Status
	case event.EnvelopeNotification:
		res.Event = "notification"
		if env.Notification != nil {
			res.ID = strconv.FormatUint(env.Notification.ID, 10)
			res.Payload = env.Notification
		}
	default:
		res.Event = "unknown"
	}

	return json.Marshal(res)
}
