package bus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/webitel/user-admin-client/internal/adapter/pubsub"
	"github.com/webitel/user-admin-client/internal/domain/event"
	"github.com/webitel/user-admin-client/internal/domain/registry"
	"github.com/webitel/user-admin-client/internal/service"
)

const (
	HandlerSeedDirectory   = "SEED_DIRECTORY"
	HandlerLogNotification = "LOG_NOTIFICATIONS"
	HandlerForwardToBroker = "FORWARD_TO_BROKER"
)

type Handler struct {
	tracker   registry.Tracker
	directory service.Directory
	broker    *pubsub.BrokerPublisher
	logger    *slog.Logger
}

func NewHandler(tracker registry.Tracker, directory service.Directory, broker *pubsub.BrokerPublisher, logger *slog.Logger) *Handler {
	return &Handler{tracker, directory, broker, logger}
}

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 5 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("ROUTER_SETUP_FAILED: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)
	return router, nil
}

// [REGISTRATION_PIPELINE]
func (h *Handler) RegisterHandlers(router *message.Router, sub message.Subscriber) error {
	configs := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{HandlerSeedDirectory, event.TopicInbound, Bind(h, h.OnInbound)},
		{HandlerLogNotification, event.TopicNotifications, Bind(h, h.OnNotification)},
	}

	for _, c := range configs {
		router.AddConsumerHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			DropMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			middleware.Timeout(10*time.Second),
		)
	}

	if h.broker.Enabled() {
		router.AddHandler(HandlerForwardToBroker,
			event.TopicInbound, sub,
			h.broker.Exchange(), h.broker.Publisher(),
			h.Forward,
		).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			DropMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			middleware.NewThrottle(100, time.Second).Middleware,
		)
	}

	h.logger.Info("BUS_PIPELINE_READY", "broker", h.broker.Enabled())
	return nil
}
