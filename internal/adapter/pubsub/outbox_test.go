package pubsub

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/user-admin-client/internal/domain/event"
	"github.com/webitel/user-admin-client/internal/domain/model"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestOutbox_DeliversInPublishOrder(t *testing.T) {
	const total = 300

	bus := NewLocalBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msgs, err := bus.Subscribe(ctx, event.TopicStatus)
	require.NoError(t, err)

	outbox := NewOutbox(NewEventDispatcher(bus, discard()), total, discard())
	outbox.Start()
	t.Cleanup(outbox.Stop)

	states := []model.ConnectionState{model.Connecting, model.Open, model.Closing, model.Closed}
	for i := 0; i < total; i++ {
		env := event.NewStatusEnvelope(states[i%len(states)], fmt.Errorf("%d", i))
		require.NoError(t, outbox.Publish(ctx, env))
	}

	for want := 0; want < total; want++ {
		select {
		case msg := <-msgs:
			env, err := Decode(msg)
			require.NoError(t, err)
			msg.Ack()

			got, err := strconv.Atoi(env.Status.Error)
			require.NoError(t, err)
			require.Equal(t, want, got, "envelope delivered out of order")
			assert.Equal(t, int32(states[want%len(states)]), env.Status.State)

			// uneven consumer pace must not reorder anything
			if want%50 == 0 {
				time.Sleep(2 * time.Millisecond)
			}
		case <-ctx.Done():
			t.Fatalf("received %d of %d envelopes", want, total)
		}
	}
}

func TestOutbox_PublishDoesNotBlockWhenFull(t *testing.T) {
	bus := NewLocalBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	// not started: nothing drains the queue
	outbox := NewOutbox(NewEventDispatcher(bus, discard()), 1, discard())

	require.NoError(t, outbox.Publish(context.Background(), event.NewStatusEnvelope(model.Open, nil)))
	assert.ErrorIs(t, outbox.Publish(context.Background(), event.NewStatusEnvelope(model.Closed, nil)), ErrOutboxFull)
}

func TestOutbox_StopFlushesAndRejects(t *testing.T) {
	bus := NewLocalBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := bus.Subscribe(ctx, event.TopicStatus)
	require.NoError(t, err)

	received := make(chan int32, 8)
	go func() {
		for msg := range msgs {
			env, err := Decode(msg)
			msg.Ack()
			if err == nil {
				received <- env.Status.State
			}
		}
	}()

	outbox := NewOutbox(NewEventDispatcher(bus, discard()), 8, discard())
	require.NoError(t, outbox.Publish(ctx, event.NewStatusEnvelope(model.Connecting, nil)))
	require.NoError(t, outbox.Publish(ctx, event.NewStatusEnvelope(model.Open, nil)))
	outbox.Start()
	outbox.Stop()

	assert.Equal(t, int32(model.Connecting), <-received)
	assert.Equal(t, int32(model.Open), <-received)

	assert.ErrorIs(t, outbox.Publish(ctx, event.NewStatusEnvelope(model.Closed, nil)), ErrOutboxClosed)
	outbox.Stop()
}
