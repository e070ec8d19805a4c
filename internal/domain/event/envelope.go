package event

import "github.com/webitel/user-admin-client/internal/domain/model"

// Local bus topics.
const (
	TopicInbound       = "user-admin.events.inbound"
	TopicStatus        = "user-admin.socket.status"
	TopicNotifications = "user-admin.notifications"
)

type EnvelopeType string

const (
	EnvelopeEvent        EnvelopeType = "event"
	EnvelopeStatus       EnvelopeType = "status"
	EnvelopeNotification EnvelopeType = "notification"
)

// Envelope is the unit carried on the local bus and the live stream. Exactly
// one payload field is set, matching Type.
type Envelope struct {
	Type         EnvelopeType        `json:"type"`
	Event        *InboundEvent       `json:"event,omitempty"`
	Status       *StatusChange       `json:"status,omitempty"`
	Notification *model.Notification `json:"notification,omitempty"`
}

// StatusChange pairs the raw state with its projection.
type StatusChange struct {
	State int32            `json:"state"`
	View  model.StatusView `json:"view"`
	Error string           `json:"error,omitempty"`
}

func (e Envelope) GetRoutingKey() string {
	switch e.Type {
	case EnvelopeStatus:
		return TopicStatus
	case EnvelopeNotification:
		return TopicNotifications
	default:
		return TopicInbound
	}
}

func NewEventEnvelope(ev InboundEvent) Envelope {
	return Envelope{Type: EnvelopeEvent, Event: &ev}
}

func NewStatusEnvelope(state model.ConnectionState, err error) Envelope {
	sc := &StatusChange{State: int32(state), View: model.Project(state)}
	if err != nil {
		sc.Error = err.Error()
	}
	return Envelope{Type: EnvelopeStatus, Status: sc}
}

func NewNotificationEnvelope(n model.Notification) Envelope {
	return Envelope{Type: EnvelopeNotification, Notification: &n}
}
