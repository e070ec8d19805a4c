package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/webitel/user-admin-client/internal/domain/model"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestQueue_AutoHideLifetime(t *testing.T) {
	clock := newFakeClock()
	q := NewQueue(WithClock(clock.Now))

	n := q.Push(model.Notification{Severity: model.SeveritySuccess, Title: "t", AutoHide: true})
	require.NotZero(t, n.ID)
	require.Equal(t, clock.Now(), n.CreatedAt)

	clock.Advance(4000 * time.Millisecond)
	require.Zero(t, q.Sweep())
	require.Equal(t, 1, q.Len())

	clock.Advance(1000 * time.Millisecond)
	require.Equal(t, 1, q.Sweep())
	require.Zero(t, q.Len())
}

func TestQueue_StickyUntilDismissed(t *testing.T) {
	clock := newFakeClock()
	q := NewQueue(WithClock(clock.Now))

	sticky := q.Push(model.Notification{Severity: model.SeverityError, Title: "Server error"})

	clock.Advance(time.Hour)
	q.Sweep()
	require.Equal(t, 1, q.Len())

	require.True(t, q.Dismiss(sticky.ID))
	require.False(t, q.Dismiss(sticky.ID))
	require.Zero(t, q.Len())
}

func TestQueue_SweepKeepsOrder(t *testing.T) {
	clock := newFakeClock()
	q := NewQueue(WithClock(clock.Now))

	a := q.Push(model.Notification{Title: "a"})
	q.Push(model.Notification{Title: "b", AutoHide: true})
	clock.Advance(2 * time.Second)
	c := q.Push(model.Notification{Title: "c", AutoHide: true})

	clock.Advance(3 * time.Second)
	require.Equal(t, 1, q.Sweep())

	list := q.List()
	require.Len(t, list, 2)
	require.Equal(t, a.ID, list[0].ID)
	require.Equal(t, c.ID, list[1].ID)
}

func TestQueue_VisibleNewestFirstCapped(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 8; i++ {
		q.Push(model.Notification{Title: string(rune('a' + i))})
	}

	visible := q.Visible()
	require.Len(t, visible, VisibleLimit)
	require.Equal(t, "h", visible[0].Title)
	require.Equal(t, "d", visible[4].Title)
	require.Equal(t, 8, q.Len())
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue()
	q.Push(model.Notification{Title: "x"})
	q.Clear()
	require.Zero(t, q.Len())
	require.Empty(t, q.Visible())
}

func TestQueue_StartStopSweeps(t *testing.T) {
	clock := newFakeClock()
	q := NewQueue(WithClock(clock.Now), WithSweepInterval(5*time.Millisecond))

	q.Push(model.Notification{Title: "gone", AutoHide: true})
	clock.Advance(DefaultTTL)

	q.Start(context.Background())
	defer q.Stop()

	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestQueue_StopIsIdempotent(t *testing.T) {
	q := NewQueue(WithSweepInterval(time.Millisecond))
	q.Start(context.Background())
	q.Stop()
	q.Stop()
}
