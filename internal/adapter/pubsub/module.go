package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		NewLocalBus,
		func(bus *gochannel.GoChannel) message.Publisher { return bus },
		func(bus *gochannel.GoChannel) message.Subscriber { return bus },
		func(pub message.Publisher, logger *slog.Logger) *Outbox {
			return NewOutbox(NewEventDispatcher(pub, logger), DefaultOutboxSize, logger.With("component", "outbox"))
		},
		func(o *Outbox) EventDispatcher { return o },
		NewBrokerPublisher,
	),

	fx.Invoke(func(lc fx.Lifecycle, bus *gochannel.GoChannel, outbox *Outbox, broker *BrokerPublisher) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				outbox.Start()
				return nil
			},
			OnStop: func(context.Context) error {
				outbox.Stop()
				if err := broker.Close(); err != nil {
					return err
				}
				return bus.Close()
			},
		})
	}),
)
