package event

import (
	"time"
)

type Kind int16

const (
	Unrecognized          Kind = iota // [FALLBACK]
	UserCreated                       // [BUSINESS]
	ConnectionEstablished             // [SYSTEM]
	ServerError                       // [SYSTEM]
)

func (k Kind) String() string {
	switch k {
	case UserCreated:
		return "user_created"
	case ConnectionEstablished:
		return "connection_established"
	case ServerError:
		return "error"
	default:
		return "unrecognized"
	}
}

// Wire discriminators known to this client.
const (
	DiscriminatorUserCreated           = "user_created"
	DiscriminatorConnectionEstablished = "connection_established"
	DiscriminatorError                 = "error"
)

type Priority int32

const (
	PriorityLow    Priority = 10
	PriorityNormal Priority = 20
	PriorityHigh   Priority = 30
)

// Classify resolves the kind of a decoded frame from its discriminator.
func Classify(f Frame) Kind {
	switch f.Discriminator() {
	case DiscriminatorUserCreated:
		return UserCreated
	case DiscriminatorConnectionEstablished:
		return ConnectionEstablished
	case DiscriminatorError:
		return ServerError
	default:
		return Unrecognized
	}
}

// InboundEvent is the durable, markable record of one parsed frame.
//
// [IDENTITY] ID is assigned by the client at receipt time and is unique for
// the lifetime of the distributor that produced it.
// [VIEW] Processed is computed per consumer when the log is read; it is never
// shared between consumers.
type InboundEvent struct {
	ID         uint64    `json:"id"`
	Kind       Kind      `json:"-"`
	Frame      Frame     `json:"frame"`
	ReceivedAt time.Time `json:"timestamp"`
	Processed  bool      `json:"read"`
}

// Priority drives backpressure shedding in consumer mailboxes.
func (e InboundEvent) Priority() Priority {
	switch e.Kind {
	case UserCreated, ServerError:
		return PriorityHigh
	case ConnectionEstablished:
		return PriorityNormal
	default:
		return PriorityLow
	}
}
