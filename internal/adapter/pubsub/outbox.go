package pubsub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/webitel/user-admin-client/internal/domain/event"
)

const DefaultOutboxSize = 1024

var (
	ErrOutboxClosed = errors.New("outbox closed")
	ErrOutboxFull   = errors.New("outbox full")
)

// Interface guard
var _ EventDispatcher = (*Outbox)(nil)

// Outbox decouples producers from bus delivery. Publish never blocks; one
// goroutine forwards envelopes to the next dispatcher in the order they were
// accepted.
type Outbox struct {
	next   EventDispatcher
	logger *slog.Logger
	queue  chan event.Envelope

	started  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewOutbox(next EventDispatcher, size int, logger *slog.Logger) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Outbox{
		next:   next,
		logger: logger,
		queue:  make(chan event.Envelope, size),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Publish enqueues env. It fails with ErrOutboxFull instead of blocking the
// caller, which is usually the connection manager's loop.
func (o *Outbox) Publish(_ context.Context, env event.Envelope) error {
	select {
	case <-o.stop:
		return ErrOutboxClosed
	default:
	}

	select {
	case o.queue <- env:
		return nil
	default:
		o.logger.Warn("OUTBOX_FULL", "type", env.Type, "size", cap(o.queue))
		return ErrOutboxFull
	}
}

func (o *Outbox) Publisher() message.Publisher { return o.next.Publisher() }

func (o *Outbox) Start() {
	if o.started.CompareAndSwap(false, true) {
		go o.run()
	}
}

// Stop flushes what was already accepted and waits for the worker to exit.
func (o *Outbox) Stop() {
	o.stopOnce.Do(func() {
		close(o.stop)
		if o.started.Load() {
			<-o.done
		}
	})
}

func (o *Outbox) run() {
	defer close(o.done)

	for {
		select {
		case env := <-o.queue:
			o.forward(env)
		case <-o.stop:
			// [DRAIN] keep order for what is left
			for {
				select {
				case env := <-o.queue:
					o.forward(env)
				default:
					return
				}
			}
		}
	}
}

func (o *Outbox) forward(env event.Envelope) {
	if err := o.next.Publish(context.Background(), env); err != nil {
		o.logger.Warn("ENVELOPE_PUBLISH_FAILED", "type", env.Type, "err", err)
	}
}
