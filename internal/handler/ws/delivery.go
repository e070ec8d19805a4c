package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/webitel/user-admin-client/internal/adapter/pubsub"
	"github.com/webitel/user-admin-client/internal/domain/event"
	wsmarshaller "github.com/webitel/user-admin-client/internal/handler/marshaller/ws"
)

const writeWait = 10 * time.Second

// WSHandler streams the local bus (events, status changes, notifications)
// to browser views.
type WSHandler struct {
	logger   *slog.Logger
	sub      message.Subscriber
	upgrader websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, sub message.Subscriber) *WSHandler {
	return &WSHandler{
		logger: logger,
		sub:    sub,
		upgrader: websocket.Upgrader{
			// the API binds to a local address
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	connID := uuid.New()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// 2. SUBSCRIBE TO EVERY LIVE TOPIC
	merged := make(chan *message.Message)
	for _, topic := range []string{event.TopicInbound, event.TopicStatus, event.TopicNotifications} {
		ch, err := h.sub.Subscribe(ctx, topic)
		if err != nil {
			h.logger.Error("ws subscribe failed", "topic", topic, "error", err)
			return
		}
		go forward(ctx, ch, merged)
	}

	// 3. READ PUMP: only detects the peer going away
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Info("ws opened", "conn_id", connID)
	defer h.logger.Info("ws closed", "conn_id", connID)

	// 4. MAIN WS PUMP LOOP
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-merged:
			env, err := pubsub.Decode(msg)
			msg.Ack()
			if err != nil {
				h.logger.Error("failed to decode bus message", "error", err)
				continue
			}

			data, err := wsmarshaller.MarshallEnvelope(env)
			if err != nil {
				h.logger.Error("failed to marshal ws event", "error", err)
				continue
			}

			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("ws send failed", "error", err)
				return
			}
		}
	}
}

func forward(ctx context.Context, in <-chan *message.Message, out chan<- *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				msg.Ack()
				return
			}
		}
	}
}
