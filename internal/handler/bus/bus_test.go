package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/stretchr/testify/require"

	"github.com/webitel/user-admin-client/config"
	"github.com/webitel/user-admin-client/internal/adapter/pubsub"
	"github.com/webitel/user-admin-client/internal/domain/event"
	"github.com/webitel/user-admin-client/internal/domain/model"
	"github.com/webitel/user-admin-client/internal/domain/registry"
	"github.com/webitel/user-admin-client/internal/service"
)

type syncCounter struct {
	service.Directory
	calls atomic.Int32
}

func (s *syncCounter) Sync(c registry.Consumer) int {
	s.calls.Add(1)
	n := 0
	for _, ev := range c.Unprocessed() {
		c.MarkProcessed(ev.ID)
		n++
	}
	return n
}

func newTestHandler(t *testing.T) (*Handler, *registry.Distributor, *syncCounter) {
	t.Helper()
	dist := registry.NewDistributor()
	t.Cleanup(dist.Shutdown)

	dir := &syncCounter{}
	broker := pubsub.NewBrokerPublisher(&config.Config{}, watermill.NopLogger{}, slog.Default())
	return NewHandler(dist, dir, broker, slog.Default()), dist, dir
}

func envelopeMessage(t *testing.T, env event.Envelope) *message.Message {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(pubsub.MetaType, string(env.Type))
	return msg
}

func TestBind_RestoresKind(t *testing.T) {
	h, _, _ := newTestHandler(t)

	var got event.Envelope
	fn := Bind(h, func(_ context.Context, env event.Envelope) error {
		got = env
		return nil
	})

	ev := event.InboundEvent{ID: 3, Kind: event.UserCreated, Frame: event.Frame{Event: event.DiscriminatorUserCreated}}
	require.NoError(t, fn(envelopeMessage(t, event.NewEventEnvelope(ev))))
	require.NotNil(t, got.Event)
	require.Equal(t, event.UserCreated, got.Event.Kind)
	require.Equal(t, uint64(3), got.Event.ID)
}

func TestBind_AcksPoisonAndPanics(t *testing.T) {
	h, _, _ := newTestHandler(t)

	called := false
	fn := Bind(h, func(context.Context, event.Envelope) error {
		called = true
		return nil
	})
	require.NoError(t, fn(message.NewMessage(watermill.NewUUID(), []byte("{broken"))))
	require.False(t, called)

	panicky := Bind(h, func(context.Context, event.Envelope) error { panic("boom") })
	require.NoError(t, panicky(envelopeMessage(t, event.NewStatusEnvelope(model.Open, nil))))
}

func TestForward_OnlyEvents(t *testing.T) {
	h, _, _ := newTestHandler(t)

	out, err := h.Forward(envelopeMessage(t, event.NewStatusEnvelope(model.Closed, nil)))
	require.NoError(t, err)
	require.Empty(t, out)

	src := envelopeMessage(t, event.NewEventEnvelope(event.InboundEvent{ID: 1}))
	out, err = h.Forward(src)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, src.UUID, out[0].Metadata.Get("source_msg_id"))
	require.Equal(t, src.Payload, out[0].Payload)
}

func TestRouter_SeedsDirectoryFromBus(t *testing.T) {
	h, dist, dir := newTestHandler(t)

	bus := pubsub.NewLocalBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	router, err := NewWatermillRouter(watermill.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, h.RegisterHandlers(router, bus))

	go func() { _ = router.Run(context.Background()) }()
	t.Cleanup(func() { _ = router.Close() })
	<-router.Running()

	dispatcher := pubsub.NewEventDispatcher(bus, slog.Default())
	ev := dist.RecordEvent(event.Decode([]byte(`{"event":"user_created","user":{"id":9,"username":"ana"}}`)))
	require.NoError(t, dispatcher.Publish(context.Background(), event.NewEventEnvelope(ev)))

	require.Eventually(t, func() bool { return dir.calls.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Empty(t, dist.Consumer(service.ConsumerDirectory).Unprocessed())
	require.Len(t, dist.UnprocessedEvents(), 1)
}

func TestRouter_FailingHandlerDoesNotStallBus(t *testing.T) {
	bus := pubsub.NewLocalBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	router, err := NewWatermillRouter(watermill.NopLogger{})
	require.NoError(t, err)

	var calls atomic.Int32
	router.AddConsumerHandler("ALWAYS_FAILS", event.TopicStatus, bus, func(*message.Message) error {
		calls.Add(1)
		return errors.New("directory unavailable")
	}).AddMiddleware(
		DropMiddleware(slog.Default()),
		middleware.Retry{MaxRetries: 1, InitialInterval: time.Millisecond}.Middleware,
	)

	go func() { _ = router.Run(context.Background()) }()
	t.Cleanup(func() { _ = router.Close() })
	<-router.Running()

	dispatcher := pubsub.NewEventDispatcher(bus, slog.Default())
	done := make(chan error, 1)
	go func() {
		for _, s := range []model.ConnectionState{model.Connecting, model.Open, model.Closed} {
			if err := dispatcher.Publish(context.Background(), event.NewStatusEnvelope(s, nil)); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("publish stalled behind a failing handler")
	}
	// one attempt plus one retry per envelope
	require.Equal(t, int32(6), calls.Load())
}
