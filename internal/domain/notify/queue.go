// Package notify keeps the bounded-lifetime list of user-visible notifications.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/webitel/user-admin-client/internal/domain/model"
)

const (
	// DefaultTTL is the age at which an auto-hide notification becomes sweepable.
	DefaultTTL = 5 * time.Second
	// DefaultSweepInterval is the fixed cadence of the cleanup tick.
	DefaultSweepInterval = time.Second
	// VisibleLimit is how many of the most recent notifications a surface renders.
	VisibleLimit = 5
)

// Queue is an ordered, oldest-first list of notifications.
// Safe for concurrent use by the relay, HTTP handlers and the dashboard.
type Queue struct {
	mu     sync.RWMutex
	items  []model.Notification
	nextID uint64

	ttl      time.Duration
	interval time.Duration
	now      func() time.Time

	// [LIFECYCLE_CONTROL] owned sweep ticker
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Queue)

// WithClock replaces time.Now, used by tests to age notifications.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func WithSweepInterval(d time.Duration) Option {
	return func(q *Queue) { q.interval = d }
}

func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		ttl:      DefaultTTL,
		interval: DefaultSweepInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push appends a notification, assigning ID and CreatedAt when unset.
func (q *Queue) Push(n model.Notification) model.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	if n.ID == 0 {
		n.ID = q.nextID
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = q.now()
	}
	q.items = append(q.items, n)
	return n
}

// Dismiss removes a notification regardless of AutoHide.
func (q *Queue) Dismiss(id uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// Sweep drops every auto-hide notification whose age reached the TTL and
// returns how many were removed.
func (q *Queue) Sweep() int {
	now := q.now()

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	for _, n := range q.items {
		if n.AutoHide && n.Age(now) >= q.ttl {
			continue
		}
		kept = append(kept, n)
	}
	removed := len(q.items) - len(kept)
	// zero the tail so dropped entries are not retained by the backing array
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = model.Notification{}
	}
	q.items = kept
	return removed
}

// List returns a copy of all notifications, oldest first.
func (q *Queue) List() []model.Notification {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]model.Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Visible returns at most VisibleLimit of the most recent notifications,
// newest first.
func (q *Queue) Visible() []model.Notification {
	q.mu.RLock()
	defer q.mu.RUnlock()

	n := min(len(q.items), VisibleLimit)
	out := make([]model.Notification, 0, n)
	for i := len(q.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, q.items[i])
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Start launches the periodic sweep. Calling Start twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.cancel != nil {
		q.mu.Unlock()
		return
	}
	ctx, q.cancel = context.WithCancel(ctx)
	q.done = make(chan struct{})
	done := q.done
	q.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(q.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.Sweep()
			}
		}
	}()
}

// Stop cancels the sweep ticker and waits for it to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	cancel, done := q.cancel, q.done
	q.cancel, q.done = nil, nil
	q.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
