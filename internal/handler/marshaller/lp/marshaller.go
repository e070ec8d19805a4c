package lpmarshaller

import (
	"encoding/json"

	"github.com/webitel/user-admin-client/internal/domain/event"
	"github.com/webitel/user-admin-client/internal/handler/marshaller"
)

// Response defines the top-level JSON array to support event batching.
type Response struct {
	Consumer string                 `json:"consumer"`
	Events   []marshaller.EventView `json:"events"`
	// LastID is the cursor for the next poll's "after" parameter.
	LastID  uint64 `json:"last_id"`
	Dropped uint64 `json:"dropped,omitempty"`
}

// MarshallEvents converts a batch of events into a single JSON document.
func MarshallEvents(consumer string, events []event.InboundEvent, dropped uint64) ([]byte, error) {
	res := Response{
		Consumer: consumer,
		Events:   marshaller.MarshallDeliveryEvents(events),
		Dropped:  dropped,
	}
	for _, ev := range events {
		res.LastID = max(res.LastID, ev.ID)
	}
	return json.Marshal(res)
}
