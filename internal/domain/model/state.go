package model

// ConnectionState mirrors the small-integer ready state of a WebSocket channel.
// Values outside the enumeration are representable on purpose: they come from
// the wire and project to an "unknown" status.
type ConnectionState int32

const (
	Connecting ConnectionState = iota
	Open
	Closing
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the four known states.
func (s ConnectionState) Valid() bool {
	return s >= Connecting && s <= Closed
}
