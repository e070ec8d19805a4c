package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/webitel/user-admin-client/internal/adapter/pubsub"
	"github.com/webitel/user-admin-client/internal/domain/event"
	"github.com/webitel/user-admin-client/internal/domain/model"
	wsmarshaller "github.com/webitel/user-admin-client/internal/handler/marshaller/ws"
)

func TestWSHandler_StreamsBusEnvelopes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := pubsub.NewLocalBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })
	dispatcher := pubsub.NewEventDispatcher(bus, logger)

	srv := httptest.NewServer(NewWSHandler(logger, bus))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	frames := make(chan []byte, 16)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				close(frames)
				return
			}
			frames <- data
		}
	}()

	// the handler subscribes after the upgrade; publish until the stream picks it up
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case data, ok := <-frames:
			require.True(t, ok)
			var got wsmarshaller.WSEvent
			require.NoError(t, json.Unmarshal(data, &got))
			require.Equal(t, "status_changed", got.Event)
			return
		case <-tick.C:
			require.NoError(t, dispatcher.Publish(context.Background(), event.NewStatusEnvelope(model.Open, nil)))
		case <-deadline:
			t.Fatal("no frame streamed")
		}
	}
}
