package marshaller

import (
	"encoding/json"

	"github.com/webitel/user-admin-client/internal/domain/event"
	"github.com/webitel/user-admin-client/internal/domain/model"
)

// EventView is the JSON shape of a recorded event on every local surface.
type EventView struct {
	ID         uint64          `json:"id"`
	Kind       string          `json:"kind"`
	Event      string          `json:"event,omitempty"`
	User       *model.User     `json:"user,omitempty"`
	Message    string          `json:"message,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Text       string          `json:"text,omitempty"`
	Type       string          `json:"type,omitempty"`
	ReceivedAt int64           `json:"received_at"`
	Read       bool            `json:"read"`
	Priority   int32           `json:"priority"`
}

// MarshallDeliveryEvent flattens an inbound event; the discriminator of an
// unrecognized frame is kept so that clients can still route on it.
func MarshallDeliveryEvent(ev event.InboundEvent) EventView {
	return EventView{
		ID:         ev.ID,
		Kind:       ev.Kind.String(),
		Event:      ev.Frame.Discriminator(),
		User:       ev.Frame.User,
		Message:    ev.Frame.Message,
		Data:       ev.Frame.Data,
		Text:       ev.Frame.Text,
		Type:       ev.Frame.Type,
		ReceivedAt: ev.ReceivedAt.UnixMilli(),
		Read:       ev.Processed,
		Priority:   int32(ev.Priority()),
	}
}

func MarshallDeliveryEvents(evs []event.InboundEvent) []EventView {
	out := make([]EventView, 0, len(evs))
	for _, ev := range evs {
		out = append(out, MarshallDeliveryEvent(ev))
	}
	return out
}
