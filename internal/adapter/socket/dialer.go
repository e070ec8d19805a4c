package socket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const wssPrefix = "wss://"

// Dialer opens a transport connection to a WebSocket endpoint.
type Dialer interface {
	DialContext(ctx context.Context, url string) (Conn, error)
}

// Conn is the minimal surface the manager needs from a live socket.
type Conn interface {
	// Receive blocks for the next text or binary frame. A close frame is
	// reported as *CloseError.
	Receive() ([]byte, error)
	Send(msg []byte) error
	// CloseWithCode sends a close frame and releases the connection.
	CloseWithCode(code int, reason string) error
	Close() error
}

var (
	_ Dialer = (*websocketDialer)(nil)
	_ Conn   = (*websocketConn)(nil)
)

// websocketDialer implements Dialer with gorilla/websocket.
type websocketDialer struct {
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	header           http.Header
}

// NewDialer creates a gorilla-backed Dialer. header is sent with every handshake
// and may be nil.
func NewDialer(handshakeTimeout, writeTimeout time.Duration, header http.Header) Dialer {
	return &websocketDialer{
		handshakeTimeout: handshakeTimeout,
		writeTimeout:     writeTimeout,
		header:           header,
	}
}

func (d *websocketDialer) DialContext(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.handshakeTimeout,
	}
	if strings.HasPrefix(url, wssPrefix) {
		dialer.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	conn, resp, err := dialer.DialContext(ctx, url, d.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &websocketConn{conn: conn, writeTimeout: d.writeTimeout}, nil
}

// websocketConn implements Conn over a gorilla connection.
type websocketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (c *websocketConn) Receive() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return nil, &CloseError{Code: ce.Code, Reason: ce.Text}
		}
		return nil, err
	}
	return msg, nil
}

func (c *websocketConn) Send(msg []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	// TextMessage: payloads are UTF-8 JSON or plain text
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *websocketConn) CloseWithCode(code int, reason string) error {
	deadline := time.Now().Add(c.writeTimeout)
	werr := c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	cerr := c.conn.Close()
	if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
		return errors.Join(werr, cerr)
	}
	return cerr
}

func (c *websocketConn) Close() error {
	return c.conn.Close()
}
