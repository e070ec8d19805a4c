package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/webitel/user-admin-client/internal/domain/event"
)

// EventDispatcher defines the high-level contract for outgoing envelopes.
// This allows the relay to stay agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, env event.Envelope) error
	Publisher() message.Publisher
}

// eventDispatcher is the concrete implementation (private).
type eventDispatcher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

// NewEventDispatcher returns the interface instead of the pointer to the struct.
func NewEventDispatcher(pub message.Publisher, logger *slog.Logger) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
		logger:    logger,
	}
}

func (d *eventDispatcher) Publish(ctx context.Context, env event.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetaType, string(env.Type))
	if env.Event != nil {
		msg.Metadata.Set(MetaKind, env.Event.Kind.String())
	}

	topic := env.GetRoutingKey()
	d.logger.Debug("ENVELOPE_PUBLISHED", "topic", topic, "msg_id", msg.UUID)
	if err := d.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", topic, err)
	}

	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}

// Decode restores an envelope from a bus message.
func Decode(msg *message.Message) (event.Envelope, error) {
	var env event.Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return env, fmt.Errorf("decode envelope %s: %w", msg.UUID, err)
	}
	// Kind is not serialized; restore it from the frame
	if env.Event != nil {
		env.Event.Kind = event.Classify(env.Event.Frame)
	}
	return env, nil
}
