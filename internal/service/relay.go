package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/webitel/user-admin-client/internal/adapter/pubsub"
	"github.com/webitel/user-admin-client/internal/adapter/socket"
	"github.com/webitel/user-admin-client/internal/domain/event"
	"github.com/webitel/user-admin-client/internal/domain/model"
	"github.com/webitel/user-admin-client/internal/domain/notify"
	"github.com/webitel/user-admin-client/internal/domain/registry"
)

// Interface guard
var _ socket.Listener = (*Relay)(nil)

// Relay binds the connection manager to the rest of the client: every frame
// is recorded, turned into notifications where applicable and published on
// the local bus.
type Relay struct {
	recorder   registry.Recorder
	queue      *notify.Queue
	dispatcher pubsub.EventDispatcher
	logger     *slog.Logger

	// id of the connection-error notification currently in the queue
	errMu   sync.Mutex
	errNote uint64
}

func NewRelay(recorder registry.Recorder, queue *notify.Queue, dispatcher pubsub.EventDispatcher, logger *slog.Logger) *Relay {
	return &Relay{
		recorder:   recorder,
		queue:      queue,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (r *Relay) OnFrame(f event.Frame) {
	ev := r.recorder.RecordEvent(f)
	r.publish(event.NewEventEnvelope(ev))

	if n, ok := NotificationFor(ev); ok {
		r.notify(n)
	}
}

func (r *Relay) OnState(state model.ConnectionState) {
	if state == model.Open {
		r.errMu.Lock()
		if r.errNote != 0 {
			r.queue.Dismiss(r.errNote)
			r.errNote = 0
		}
		r.errMu.Unlock()
	}
	r.publish(event.NewStatusEnvelope(state, nil))
}

// OnError surfaces a connection-level failure. At most one such notification
// is queued: a new failure replaces the previous one and reopening the
// connection dismisses it. Only an exhausted retry budget is sticky.
func (r *Relay) OnError(err error) {
	r.logger.Warn("WS_CONNECTION_ERROR", "err", err)

	n := model.Notification{
		Severity: model.SeverityError,
		Title:    "Connection error",
		Message:  err.Error(),
		AutoHide: !errors.Is(err, socket.ErrMaxAttempts),
	}

	r.errMu.Lock()
	if r.errNote != 0 {
		r.queue.Dismiss(r.errNote)
	}
	n = r.queue.Push(n)
	r.errNote = n.ID
	r.errMu.Unlock()

	r.publish(event.NewNotificationEnvelope(n))
}

func (r *Relay) notify(n model.Notification) {
	n = r.queue.Push(n)
	r.publish(event.NewNotificationEnvelope(n))
}

func (r *Relay) publish(env event.Envelope) {
	if err := r.dispatcher.Publish(context.Background(), env); err != nil {
		r.logger.Warn("ENVELOPE_PUBLISH_FAILED", "type", env.Type, "err", err)
	}
}

// NotificationFor derives the user-facing notification of an event, if any.
func NotificationFor(ev event.InboundEvent) (model.Notification, bool) {
	switch ev.Kind {
	case event.UserCreated:
		username := "unknown"
		if ev.Frame.User != nil && ev.Frame.User.Username != "" {
			username = ev.Frame.User.Username
		}
		return model.Notification{
			Severity: model.SeveritySuccess,
			Title:    "New user created",
			Message:  fmt.Sprintf("User %s created successfully", username),
			AutoHide: true,
			EventID:  ev.ID,
		}, true

	case event.ConnectionEstablished:
		return model.Notification{
			Severity: model.SeverityInfo,
			Title:    "Connected",
			Message:  "WebSocket connection established",
			AutoHide: true,
			EventID:  ev.ID,
		}, true

	case event.ServerError:
		msg := ev.Frame.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return model.Notification{
			Severity: model.SeverityError,
			Title:    "Server error",
			Message:  msg,
			EventID:  ev.ID,
		}, true

	default:
		return model.Notification{}, false
	}
}
