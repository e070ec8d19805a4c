// Package registry records inbound events and tracks, per consumer, which of
// them have been handled.
package registry

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/user-admin-client/internal/domain/event"
)

// DefaultConsumer backs the single-consumer API (UnprocessedEvents / MarkProcessed).
const DefaultConsumer = "default"

// Recorder is the write side used by the socket relay.
type Recorder interface {
	RecordEvent(f event.Frame) event.InboundEvent
}

// Tracker is the read/ack side used by UI surfaces.
type Tracker interface {
	UnprocessedEvents() []event.InboundEvent
	MarkProcessed(id uint64)
	Consumer(name string) Consumer
	Events() []event.InboundEvent
	Stats() Stats
}

// Subscriber exposes live per-consumer delivery to transports.
type Subscriber interface {
	Subscribe(ctx context.Context, consumer string) Connector
	Unsubscribe(consumer string, connID uuid.UUID)
}

var (
	_ Recorder   = (*Distributor)(nil)
	_ Tracker    = (*Distributor)(nil)
	_ Subscriber = (*Distributor)(nil)
)

// Stats is a point-in-time snapshot of the distributor.
type Stats struct {
	Total        int            `json:"total"`
	Unprocessed  map[string]int `json:"unprocessed"`
	LiveSessions int            `json:"live_sessions"`
	Cells        int            `json:"cells"`
}

// Distributor owns the ordered event log and the per-consumer ack sets.
//
// [LOG] events are stored oldest first and presented newest first.
// [ACK] each consumer keeps its own set of processed ids, so one surface
// marking an event never hides it from another.
type Distributor struct {
	mu     sync.RWMutex
	log    []event.InboundEvent
	nextID uint64
	acks   map[string]map[uint64]struct{}

	cellsMu sync.Mutex
	cells   map[string]Celler

	logger *slog.Logger
	now    func() time.Time

	config struct {
		mailboxSize      int
		idleTimeout      time.Duration
		evictionInterval time.Duration
	}

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewDistributor(opts ...Option) *Distributor {
	d := &Distributor{
		acks:   map[string]map[uint64]struct{}{DefaultConsumer: {}},
		cells:  make(map[string]Celler),
		logger: slog.Default(),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	d.config.mailboxSize = 256
	d.config.idleTimeout = 10 * time.Minute
	d.config.evictionInterval = time.Minute

	for _, opt := range opts {
		opt(d)
	}

	go d.janitor()
	return d
}

// RecordEvent classifies the frame, stamps it with the next id and receipt
// time, appends it to the log and fans it out to live consumer cells.
func (d *Distributor) RecordEvent(f event.Frame) event.InboundEvent {
	kind := event.Classify(f)

	d.mu.Lock()
	d.nextID++
	ev := event.InboundEvent{
		ID:         d.nextID,
		Kind:       kind,
		Frame:      f,
		ReceivedAt: d.now(),
	}
	d.log = append(d.log, ev)
	d.mu.Unlock()

	if kind == event.Unrecognized {
		d.logger.Warn("UNRECOGNIZED_EVENT",
			"id", ev.ID,
			"discriminator", f.Discriminator(),
			"text", f.IsText(),
		)
	}

	d.cellsMu.Lock()
	for name, cell := range d.cells {
		if !cell.Push(ev) {
			d.logger.Warn("CONSUMER_MAILBOX_FULL", "consumer", name, "id", ev.ID)
		}
	}
	d.cellsMu.Unlock()

	return ev
}

// UnprocessedEvents returns the default consumer's pending events, newest first.
func (d *Distributor) UnprocessedEvents() []event.InboundEvent {
	return d.Consumer(DefaultConsumer).Unprocessed()
}

// MarkProcessed acks id for the default consumer.
func (d *Distributor) MarkProcessed(id uint64) {
	d.Consumer(DefaultConsumer).MarkProcessed(id)
}

// Events returns the whole log, newest first, as seen by the default consumer.
func (d *Distributor) Events() []event.InboundEvent {
	return d.Consumer(DefaultConsumer).Events()
}

func (d *Distributor) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.log)
}

// Consumer returns an independent view over the log. Names are created on first use.
func (d *Distributor) Consumer(name string) Consumer {
	if name == "" {
		name = DefaultConsumer
	}
	return Consumer{name: name, d: d}
}

func (d *Distributor) Stats() Stats {
	d.mu.RLock()
	st := Stats{
		Total:       len(d.log),
		Unprocessed: make(map[string]int, len(d.acks)),
	}
	for name, acked := range d.acks {
		st.Unprocessed[name] = len(d.log) - len(acked)
	}
	d.mu.RUnlock()

	d.cellsMu.Lock()
	st.Cells = len(d.cells)
	for _, cell := range d.cells {
		st.LiveSessions += cell.Sessions()
	}
	d.cellsMu.Unlock()

	return st
}

// view copies the log newest first, filling Processed for consumer.
// When pendingOnly is set acked events are skipped.
func (d *Distributor) view(consumer string, pendingOnly bool) []event.InboundEvent {
	d.mu.RLock()
	defer d.mu.RUnlock()

	acked := d.acks[consumer]
	out := make([]event.InboundEvent, 0, len(d.log))
	for _, ev := range slices.Backward(d.log) {
		_, done := acked[ev.ID]
		if pendingOnly && done {
			continue
		}
		ev.Processed = done
		out = append(out, ev)
	}
	return out
}

func (d *Distributor) ack(consumer string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// ids are dense from 1, anything outside is unknown
	if id == 0 || id > d.nextID {
		return
	}
	set, ok := d.acks[consumer]
	if !ok {
		set = make(map[uint64]struct{})
		d.acks[consumer] = set
	}
	set[id] = struct{}{}
}

// Subscribe attaches a live session to the consumer's cell, creating the
// cell on first use.
func (d *Distributor) Subscribe(ctx context.Context, consumer string) Connector {
	conn := NewConnector(ctx, consumer, d.config.mailboxSize)

	d.cellsMu.Lock()
	cell, ok := d.cells[consumer]
	if !ok {
		// [LAZY_INIT]
		cell = NewCell(consumer, d.config.mailboxSize)
		d.cells[consumer] = cell
	}
	cell.Attach(conn)
	d.cellsMu.Unlock()

	d.logger.Debug("CONSUMER_SUBSCRIBED", "consumer", consumer, "conn_id", conn.GetID())
	return conn
}

// Unsubscribe performs [GRACEFUL_RECLAMATION] of a session. The cell itself
// stays until the janitor finds it idle.
func (d *Distributor) Unsubscribe(consumer string, connID uuid.UUID) {
	d.cellsMu.Lock()
	defer d.cellsMu.Unlock()

	if cell, ok := d.cells[consumer]; ok {
		cell.Detach(connID)
		d.logger.Debug("CONSUMER_UNSUBSCRIBED", "consumer", consumer, "conn_id", connID)
	}
}

func (d *Distributor) janitor() {
	ticker := time.NewTicker(d.config.evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.evictIdle()
		}
	}
}

func (d *Distributor) evictIdle() {
	d.cellsMu.Lock()
	defer d.cellsMu.Unlock()

	for name, cell := range d.cells {
		if cell.IsIdle(d.config.idleTimeout) {
			cell.Stop()
			delete(d.cells, name)
			d.logger.Debug("CELL_EVICTED", "consumer", name)
		}
	}
}

// Shutdown stops the janitor and every consumer cell.
func (d *Distributor) Shutdown() {
	d.stopOnce.Do(func() {
		close(d.stopCh)

		d.cellsMu.Lock()
		defer d.cellsMu.Unlock()
		for name, cell := range d.cells {
			cell.Stop()
			delete(d.cells, name)
		}
	})
}

// Consumer is a named, independent acknowledgement view.
type Consumer struct {
	name string
	d    *Distributor
}

func (c Consumer) Name() string { return c.name }

// Unprocessed returns events this consumer has not acked, newest first.
func (c Consumer) Unprocessed() []event.InboundEvent {
	return c.d.view(c.name, true)
}

// MarkProcessed is idempotent; unknown ids are ignored.
func (c Consumer) MarkProcessed(id uint64) {
	c.d.ack(c.name, id)
}

// Events returns the whole log with Processed set from this consumer's view.
func (c Consumer) Events() []event.InboundEvent {
	return c.d.view(c.name, false)
}
