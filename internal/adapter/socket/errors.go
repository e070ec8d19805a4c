package socket

import (
	"errors"
	"fmt"
)

// The messages below are shown verbatim on status surfaces.
var (
	ErrNotConnected = errors.New("Cannot send message: WebSocket is not connected")
	ErrTransport    = errors.New("WebSocket connection error")
	ErrMaxAttempts  = errors.New("Max reconnection attempts reached")
	ErrClosed       = errors.New("websocket manager closed")
)

// Close codes used by the manager.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// CloseError reports a close frame (or its absence) observed on a connection.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("websocket closed: code=%d reason=%q", e.Code, e.Reason)
}

// closeCode extracts the close code from a receive error. Anything that is not
// a close frame counts as an abnormal closure.
func closeCode(err error) (int, string, bool) {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Reason, true
	}
	return CloseAbnormal, "", false
}
