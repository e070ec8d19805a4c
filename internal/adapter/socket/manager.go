// Package socket keeps one persistent WebSocket to the notification hub and
// reconnects it under a bounded retry budget.
package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/webitel/user-admin-client/internal/domain/event"
	"github.com/webitel/user-admin-client/internal/domain/model"
)

// Listener observes the manager. Every callback runs on the manager's loop
// goroutine, one at a time, and must not call back into blocking Manager methods.
type Listener interface {
	OnState(state model.ConnectionState)
	OnFrame(f event.Frame)
	OnError(err error)
}

type nopListener struct{}

func (nopListener) OnState(model.ConnectionState) {}
func (nopListener) OnFrame(event.Frame)           {}
func (nopListener) OnError(error)                 {}

const (
	reasonManual   = "Manual reconnection"
	reasonShutdown = "client shutdown"
	mailboxSize    = 64
)

// mailbox messages
type (
	cmdConnect   struct{}
	cmdReconnect struct{}
	cmdClose     struct{}

	dialResult struct {
		gen  uint64
		conn Conn
		err  error
	}
	frameMsg struct {
		gen  uint64
		data []byte
	}
	readFailed struct {
		gen uint64
		err error
	}
	retryFired struct {
		seq uint64
	}
)

// Manager is the single owner of the live connection.
//
// [ACTOR] one loop goroutine owns the connection, the retry timer and the
// budget. Dial results, socket reads, timer fires and public commands all
// arrive through the mailbox. Accessors read atomic snapshots.
type Manager struct {
	url      string
	cfg      Config
	dialer   Dialer
	logger   *slog.Logger
	listener Listener
	tracer   trace.Tracer

	mailbox chan any
	doneCh  chan struct{}
	postMu  sync.RWMutex
	stopped bool // guarded by postMu; set once the loop has exited

	startOnce sync.Once
	closeOnce sync.Once
	shut      atomic.Bool
	verbose   atomic.Bool

	// [SNAPSHOT] written by the loop, read anywhere
	state    atomic.Int32
	attempts atomic.Int32
	errMu    sync.RWMutex
	err      error

	// [WRITE_SIDE] Send writes straight to the live socket
	writeMu sync.Mutex
	conn    Conn

	// loop-owned
	gen        uint64
	live       Conn
	dialing    bool
	dialCancel context.CancelFunc
	retry      *time.Timer
	retrySeq   uint64
}

// New builds an idle manager. Nothing is dialed until Connect.
func New(url string, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		url:      url,
		cfg:      cfg.normalize(),
		logger:   slog.Default(),
		listener: nopListener{},
		tracer:   defaultTracer(),
		mailbox:  make(chan any, mailboxSize),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = NewDialer(m.cfg.HandshakeTimeout, m.cfg.WriteTimeout, nil)
	}
	m.state.Store(int32(model.Connecting))
	m.verbose.Store(m.cfg.Debug)
	return m
}

func (m *Manager) URL() string                  { return m.url }
func (m *Manager) State() model.ConnectionState { return model.ConnectionState(m.state.Load()) }
func (m *Manager) Attempts() int                { return int(m.attempts.Load()) }
func (m *Manager) IsConnected() bool            { return m.State() == model.Open }

// Err returns the last recorded connection error, nil when healthy.
func (m *Manager) Err() error {
	m.errMu.RLock()
	defer m.errMu.RUnlock()
	return m.err
}

// Connect starts the loop and begins dialing. It returns once the request is
// queued; progress is observable through State and the Listener. Calling it
// while a connection is live or being dialed is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	return m.submit(ctx, cmdConnect{})
}

// Reconnect resets the retry budget, closes any live connection with code
// 1000, cancels a pending retry and dials again.
func (m *Manager) Reconnect() error {
	return m.submit(context.Background(), cmdReconnect{})
}

// Send writes payload as a text frame. Strings and byte slices pass through;
// anything else is JSON encoded. It fails fast with ErrNotConnected when the
// connection is not open.
func (m *Manager) Send(payload any) error {
	var data []byte
	switch v := payload.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		data = b
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.conn == nil || m.State() != model.Open {
		m.setErr(ErrNotConnected)
		m.logger.Warn("WS_SEND_REJECTED", "state", m.State().String(), "bytes", len(data))
		return ErrNotConnected
	}

	if err := m.conn.Send(data); err != nil {
		err = fmt.Errorf("Send error: %w", err)
		m.setErr(err)
		return err
	}

	m.debug("message sent", "bytes", len(data))
	return nil
}

// Close stops the retry timer, closes the live connection with code 1000 and
// stops the loop. It is idempotent.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.start()
		m.shut.Store(true)
		m.post(cmdClose{})
		<-m.doneCh
	})
	return nil
}

func (m *Manager) start() {
	m.startOnce.Do(func() { go m.loop() })
}

func (m *Manager) submit(ctx context.Context, cmd any) error {
	if m.shut.Load() {
		return ErrClosed
	}
	m.start()

	select {
	case m.mailbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.doneCh:
		return ErrClosed
	}
}

// post delivers a message from a helper goroutine. It gives up once the loop
// has exited so readers and timers never leak. A false return means the
// message was not accepted and the caller still owns anything it carries.
func (m *Manager) post(msg any) bool {
	m.postMu.RLock()
	defer m.postMu.RUnlock()

	if m.stopped {
		return false
	}
	select {
	case m.mailbox <- msg:
		return true
	case <-m.doneCh:
		return false
	}
}

// drain runs after the loop exits: it releases blocked posters, refuses new
// ones and closes connections still waiting in the mailbox.
func (m *Manager) drain() {
	close(m.doneCh)

	m.postMu.Lock()
	m.stopped = true
	m.postMu.Unlock()

	for {
		select {
		case msg := <-m.mailbox:
			if res, ok := msg.(dialResult); ok && res.conn != nil {
				_ = res.conn.Close()
			}
		default:
			return
		}
	}
}

func (m *Manager) loop() {
	defer m.drain()

	for msg := range m.mailbox {
		if stop := m.handle(msg); stop {
			return
		}
	}
}

func (m *Manager) handle(msg any) bool {
	switch msg := msg.(type) {
	case cmdConnect:
		if m.live != nil || m.dialing {
			return false
		}
		m.dial()

	case cmdReconnect:
		m.debug("manual reconnection triggered")
		m.attempts.Store(0)
		m.closeLive(reasonManual)
		m.abortDial()
		m.stopRetry()
		m.dial()

	case cmdClose:
		m.debug("closing connection manager")
		m.stopRetry()
		m.abortDial()
		m.closeLive(reasonShutdown)
		m.setState(model.Closed)
		return true

	case dialResult:
		m.onDial(msg)

	case frameMsg:
		if msg.gen != m.gen || m.live == nil {
			return false
		}
		f := event.Decode(msg.data)
		m.debug("message received", "gen", msg.gen, "discriminator", f.Discriminator(), "text", f.IsText())
		m.listener.OnFrame(f)

	case readFailed:
		if msg.gen != m.gen || m.live == nil {
			return false
		}
		code, reason, isClose := closeCode(msg.err)
		if !isClose {
			m.logger.Error("WS_READ_FAILED", "url", m.url, "error", msg.err)
			m.fail(ErrTransport)
		}
		m.dropLive()
		m.onClosed(code, reason)

	case retryFired:
		if msg.seq != m.retrySeq || m.retry == nil {
			return false
		}
		m.retry = nil
		if m.live != nil || m.dialing {
			return false
		}
		m.dial()
	}
	return false
}

// dial starts exactly one handshake for a fresh generation.
func (m *Manager) dial() {
	m.stopRetry()
	m.gen++
	gen := m.gen
	attempt := m.Attempts()

	m.setErr(nil)
	m.setState(model.Connecting)
	m.debug("attempting to connect", "url", m.url, "gen", gen, "attempt", attempt)

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	m.dialing = true
	m.dialCancel = cancel

	go func() {
		defer cancel()

		ctx, span := m.tracer.Start(ctx, "socket.dial",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("ws.url", m.url),
				attribute.Int("ws.attempt", attempt),
			),
		)
		conn, err := m.dialer.DialContext(ctx, m.url)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if !m.post(dialResult{gen: gen, conn: conn, err: err}) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (m *Manager) onDial(res dialResult) {
	if res.gen != m.gen || !m.dialing {
		// [STALE] superseded by Reconnect or Close
		if res.conn != nil {
			_ = res.conn.CloseWithCode(CloseNormal, reasonManual)
		}
		return
	}
	m.dialing = false
	m.dialCancel = nil

	if res.err != nil {
		m.logger.Error("WS_DIAL_FAILED", "url", m.url, "gen", res.gen, "error", res.err)
		m.fail(ErrTransport)
		m.onClosed(CloseAbnormal, "")
		return
	}

	m.live = res.conn
	m.writeMu.Lock()
	m.conn = res.conn
	m.writeMu.Unlock()

	m.attempts.Store(0)
	m.setErr(nil)
	m.setState(model.Open)
	m.logger.Info("WS_CONNECTED", "url", m.url, "gen", res.gen)

	go m.read(res.gen, res.conn)
}

// read pumps frames of one connection into the mailbox until it fails.
func (m *Manager) read(gen uint64, conn Conn) {
	for {
		data, err := conn.Receive()
		if err != nil {
			_ = conn.Close()
			m.post(readFailed{gen: gen, err: err})
			return
		}
		if !m.post(frameMsg{gen: gen, data: data}) {
			_ = conn.Close()
			return
		}
	}
}

// onClosed applies the retry policy after the connection went away.
func (m *Manager) onClosed(code int, reason string) {
	m.setState(model.Closed)
	m.debug("connection closed", "code", code, "reason", reason)

	if code == CloseNormal {
		return
	}

	attempts := m.Attempts()
	if attempts < m.cfg.MaxReconnectAttempts {
		next := attempts + 1
		m.attempts.Store(int32(next))
		m.debug("scheduling reconnection",
			"attempt", next,
			"max", m.cfg.MaxReconnectAttempts,
			"in", m.cfg.ReconnectInterval,
		)
		m.scheduleRetry()
		return
	}

	m.logger.Warn("WS_RETRY_EXHAUSTED", "url", m.url, "attempts", attempts)
	m.fail(ErrMaxAttempts)
}

func (m *Manager) scheduleRetry() {
	m.stopRetry()
	seq := m.retrySeq
	m.retry = time.AfterFunc(m.cfg.ReconnectInterval, func() {
		m.post(retryFired{seq: seq})
	})
}

// stopRetry cancels the pending timer; a fire already queued is ignored by seq.
func (m *Manager) stopRetry() {
	m.retrySeq++
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) abortDial() {
	if !m.dialing {
		return
	}
	if m.dialCancel != nil {
		m.dialCancel()
	}
	m.dialing = false
	m.dialCancel = nil
	// bump so the aborted result is treated as stale
	m.gen++
}

// closeLive performs an intentional close (code 1000). The reader's
// resulting error belongs to a retired generation and is ignored.
func (m *Manager) closeLive(reason string) {
	conn := m.live
	if conn == nil {
		return
	}
	m.setState(model.Closing)
	m.dropLive()
	m.gen++

	if err := conn.CloseWithCode(CloseNormal, reason); err != nil {
		m.logger.Debug("WS_CLOSE_FAILED", "error", err)
	}
	m.setState(model.Closed)
	m.debug("connection closed", "code", CloseNormal, "reason", reason)
}

func (m *Manager) dropLive() {
	m.live = nil
	m.writeMu.Lock()
	m.conn = nil
	m.writeMu.Unlock()
}

func (m *Manager) setState(s model.ConnectionState) {
	if model.ConnectionState(m.state.Swap(int32(s))) == s {
		return
	}
	m.debug("state changed", "state", s.String())
	m.listener.OnState(s)
}

func (m *Manager) setErr(err error) {
	m.errMu.Lock()
	m.err = err
	m.errMu.Unlock()
}

// fail records a connection-level error and notifies the listener.
func (m *Manager) fail(err error) {
	m.setErr(err)
	m.listener.OnError(err)
}

// SetDebug toggles [WS_DEBUG] logging at Info level.
func (m *Manager) SetDebug(on bool) { m.verbose.Store(on) }

func (m *Manager) debug(msg string, args ...any) {
	if m.verbose.Load() {
		m.logger.Info("[WS_DEBUG] "+msg, args...)
		return
	}
	m.logger.Debug("[WS_DEBUG] "+msg, args...)
}
