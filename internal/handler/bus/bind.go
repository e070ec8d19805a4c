package bus

import (
	"context"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/webitel/user-admin-client/internal/adapter/pubsub"
	"github.com/webitel/user-admin-client/internal/domain/event"
)

// EnvelopeHandler defines the functional signature for bus-side logic.
type EnvelopeHandler func(ctx context.Context, env event.Envelope) error

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to domain logic, handling panic recovery and decoding.
func Bind(h *Handler, fn EnvelopeHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) (err error) {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the subscriber alive.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
				err = nil
			}
		}()

		// [DECODING]
		env, derr := pubsub.Decode(msg)
		if derr != nil {
			h.logger.Error("DECODE_FAILED", "err", derr, "msg_id", msg.UUID)
			return nil // ACK: Poison Pill protection.
		}

		// [EXECUTION]
		return fn(msg.Context(), env)
	}
}
