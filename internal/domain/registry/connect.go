package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/user-admin-client/internal/domain/event"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] THE INTERFACE FOR TRANSPORT LAYERS (LONG-POLL / STREAM)
type Connector interface {
	GetID() uuid.UUID
	GetConsumer() string
	Send(ev event.InboundEvent, timeout time.Duration) bool // Thread-safe send with backpressure handling
	Recv() <-chan event.InboundEvent
	Dropped() uint64
	Close() // Terminate session and release resources
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type connect struct {
	id        uuid.UUID
	consumer  string
	createdAt time.Time
	ctx       context.Context
	cancelFn  context.CancelFunc

	// mu serializes Send against Close so the channel is never written after close.
	mu     sync.RWMutex
	sendCh chan event.InboundEvent
	closed bool

	droppedCount uint64 // [ATOMIC_FIELD]
}

// NewConnector creates a live session for one consumer.
func NewConnector(ctx context.Context, consumer string, bufferSize int) Connector {
	childCtx, cancel := context.WithCancel(ctx)

	return &connect{
		id:        uuid.New(),
		consumer:  consumer,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan event.InboundEvent, bufferSize),
	}
}

func (c *connect) GetID() uuid.UUID    { return c.id }
func (c *connect) GetConsumer() string { return c.consumer }
func (c *connect) Dropped() uint64     { return atomic.LoadUint64(&c.droppedCount) }

// Send pushes an event into the session mailbox, waiting up to timeout for
// room before falling back to priority shedding.
func (c *connect) Send(ev event.InboundEvent, timeout time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	// 1. [LIFECYCLE_GATE]
	case <-c.ctx.Done():
		return false

	// 2. [PRIMARY_DELIVERY]
	case c.sendCh <- ev:
		return true

	// 3. [BACKPRESSURE_THRESHOLD] buffer stayed saturated for the whole window
	case <-ctx.Done():
		return c.handleBackpressure(ev)
	}
}

// handleBackpressure drops low-priority events and lets a higher-priority
// event replace the oldest queued one when that one ranks lower.
func (c *connect) handleBackpressure(ev event.InboundEvent) bool {
	if ev.Priority() <= event.PriorityLow {
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}

	select {
	case oldEv := <-c.sendCh:
		if oldEv.Priority() < ev.Priority() {
			select {
			case c.sendCh <- ev:
				atomic.AddUint64(&c.droppedCount, 1) // oldEv
				return true
			default:
			}
		}
		// put the older event back (best effort)
		select {
		case c.sendCh <- oldEv:
		default:
		}
	default:
	}

	atomic.AddUint64(&c.droppedCount, 1)
	return false
}

func (c *connect) Recv() <-chan event.InboundEvent { return c.sendCh }

// Close terminates the session. Safe to call more than once.
func (c *connect) Close() {
	c.cancelFn()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
}
