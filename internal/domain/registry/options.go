package registry

import (
	"log/slog"
	"time"
)

// Option defines a functional configuration type for the Distributor.
type Option func(*Distributor)

// WithEvictionInterval configures how often the [JANITOR] process runs
// to reclaim consumer cells nobody listens to.
func WithEvictionInterval(d time.Duration) Option {
	return func(d2 *Distributor) {
		d2.config.evictionInterval = d
	}
}

// WithIdleTimeout defines the [QUIET_PERIOD] after which a consumer cell
// without active sessions is considered eligible for eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(d2 *Distributor) {
		d2.config.idleTimeout = d
	}
}

// WithMailboxSize sets the [BACKPRESSURE] threshold.
// It defines the buffer capacity for each consumer cell and session.
func WithMailboxSize(size int) Option {
	return func(d *Distributor) {
		d.config.mailboxSize = size
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Distributor) {
		d.logger = l
	}
}

// WithClock replaces time.Now for receipt timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Distributor) {
		d.now = now
	}
}
