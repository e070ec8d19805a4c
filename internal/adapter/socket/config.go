package socket

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultReconnectInterval    = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 10 * time.Second
)

// Config controls the retry budget and transport timeouts of a Manager.
type Config struct {
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	Debug                bool
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReconnectInterval:    DefaultReconnectInterval,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		HandshakeTimeout:     DefaultHandshakeTimeout,
		WriteTimeout:         DefaultWriteTimeout,
	}
}

// normalize fills zero durations. A zero attempt budget is honoured as "never retry".
func (c Config) normalize() Config {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 0
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

type Option func(*Manager)

// WithDialer swaps the transport, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithListener sets the observer invoked on the manager's loop goroutine.
func WithListener(l Listener) Option {
	return func(m *Manager) {
		if l != nil {
			m.listener = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

func defaultTracer() trace.Tracer {
	return otel.Tracer("github.com/webitel/user-admin-client/internal/adapter/socket")
}
