package bus

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/webitel/user-admin-client/internal/adapter/pubsub"
	"github.com/webitel/user-admin-client/internal/domain/event"
	"github.com/webitel/user-admin-client/internal/service"
)

// [ON_INBOUND]
// Lets the directory catch up on its own distributor consumer.
func (h *Handler) OnInbound(ctx context.Context, env event.Envelope) error {
	if env.Event == nil || env.Event.Kind != event.UserCreated {
		return nil
	}
	h.directory.Sync(h.tracker.Consumer(service.ConsumerDirectory))
	return nil
}

// [ON_NOTIFICATION]
// The watch command's output.
func (h *Handler) OnNotification(ctx context.Context, env event.Envelope) error {
	n := env.Notification
	if n == nil {
		return nil
	}
	h.logger.Info("NOTIFICATION",
		"id", n.ID,
		"type", n.Severity,
		"title", n.Title,
		"message", n.Message,
		"auto_hide", n.AutoHide,
		"trace_id", TraceID(ctx),
	)
	return nil
}

// [FORWARD]
// Re-publishes recorded events to the broker exchange. Non-event envelopes are dropped.
func (h *Handler) Forward(msg *message.Message) ([]*message.Message, error) {
	if msg.Metadata.Get(pubsub.MetaType) != string(event.EnvelopeEvent) {
		return nil, nil
	}

	out := message.NewMessage(watermill.NewUUID(), msg.Payload)
	for k, v := range msg.Metadata {
		out.Metadata.Set(k, v)
	}
	out.Metadata.Set("source_msg_id", msg.UUID)
	return []*message.Message{out}, nil
}
