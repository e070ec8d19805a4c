package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/user-admin-client/internal/domain/event"
)

// Celler defines the internal API for consumer-specific delivery units.
type Celler interface {
	Push(ev event.InboundEvent) bool
	Attach(conn Connector)
	Detach(connID uuid.UUID) bool
	Sessions() int
	IsIdle(timeout time.Duration) bool
	Stop()
}

// Cell implements [ISOLATED_DELIVERY] for a single consumer: every live
// session of that consumer (several browser tabs, a CLI tail) gets each event.
type Cell struct {
	consumer string

	// [MAILBOX] decouples the distributor from slow sessions
	mailbox chan event.InboundEvent

	mu       sync.RWMutex
	sessions map[uuid.UUID]Connector

	doneCh   chan struct{}
	stopOnce sync.Once

	lastActivityAt time.Time
}

func NewCell(consumer string, bufferSize int) *Cell {
	c := &Cell{
		consumer:       consumer,
		mailbox:        make(chan event.InboundEvent, bufferSize),
		sessions:       make(map[uuid.UUID]Connector),
		doneCh:         make(chan struct{}),
		lastActivityAt: time.Now(),
	}
	go c.loop()
	return c
}

// IsIdle is true when the cell has no sessions and has been quiet past timeout.
func (c *Cell) IsIdle(timeout time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions) == 0 && time.Since(c.lastActivityAt) > timeout
}

func (c *Cell) touch() {
	c.mu.Lock()
	c.lastActivityAt = time.Now()
	c.mu.Unlock()
}

func (c *Cell) Push(ev event.InboundEvent) bool {
	c.touch()
	select {
	case c.mailbox <- ev:
		return true
	default:
		return false
	}
}

func (c *Cell) Attach(conn Connector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivityAt = time.Now()
	c.sessions[conn.GetID()] = conn
}

// Detach closes and removes a session, reporting whether the cell is now empty.
func (c *Cell) Detach(connID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.sessions[connID]; ok {
		conn.Close()
		delete(c.sessions, connID)
	}
	c.lastActivityAt = time.Now()
	return len(c.sessions) == 0
}

func (c *Cell) Sessions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *Cell) loop() {
	for {
		select {
		case <-c.doneCh:
			return
		case ev := <-c.mailbox:
			c.deliver(ev)
		}
	}
}

func (c *Cell) deliver(ev event.InboundEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, conn := range c.sessions {
		conn.Send(ev, 500*time.Millisecond)
	}
}

// Stop terminates the loop and closes every remaining session.
func (c *Cell) Stop() {
	c.stopOnce.Do(func() {
		close(c.doneCh)

		c.mu.Lock()
		defer c.mu.Unlock()
		for id, conn := range c.sessions {
			conn.Close()
			delete(c.sessions, id)
		}
	})
}
