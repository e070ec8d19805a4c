package pubsub

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/webitel/user-admin-client/config"
)

// Message metadata keys.
const (
	MetaType = "envelope_type"
	MetaKind = "event_kind"
)

// NewLocalBus builds the in-process bus shared by the relay, the bus router and
// live-stream subscribers. Every subscriber of a topic gets every message.
//
// [ORDERING] Publish returns only after every subscriber acked, so a single
// publishing goroutine (see Outbox) yields in-order delivery per subscriber.
func NewLocalBus(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
}

// BrokerPublisher forwards envelopes to a RabbitMQ fanout exchange. It is
// disabled when no broker URL is configured or the broker is unreachable.
type BrokerPublisher struct {
	publisher message.Publisher
	exchange  string
}

func NewBrokerPublisher(cfg *config.Config, wlogger watermill.LoggerAdapter, logger *slog.Logger) *BrokerPublisher {
	bp := &BrokerPublisher{exchange: cfg.AMQP.Exchange}
	if cfg.AMQP.URL == "" {
		return bp
	}

	amqpCfg := amqp.NewDurablePubSubConfig(cfg.AMQP.URL, amqp.GenerateQueueNameTopicNameWithSuffix("user-admin"))
	pub, err := amqp.NewPublisher(amqpCfg, wlogger)
	if err != nil {
		logger.Warn("AMQP_PUBLISHER_DISABLED", "exchange", cfg.AMQP.Exchange, "err", err)
		return bp
	}

	logger.Info("AMQP_PUBLISHER_READY", "exchange", cfg.AMQP.Exchange)
	bp.publisher = pub
	return bp
}

func (b *BrokerPublisher) Enabled() bool { return b.publisher != nil }

// Exchange is the topic the router publishes to; the pub/sub config maps it
// one-to-one onto the exchange name.
func (b *BrokerPublisher) Exchange() string { return b.exchange }

func (b *BrokerPublisher) Publisher() message.Publisher { return b.publisher }

func (b *BrokerPublisher) Close() error {
	if b.publisher == nil {
		return nil
	}
	if err := b.publisher.Close(); err != nil {
		return fmt.Errorf("close amqp publisher: %w", err)
	}
	return nil
}
