package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/webitel/user-admin-client/internal/domain/registry"
)

var ErrInvalidConsumer = errors.New("consumer name is required")

// [DELIVERY_SERVICE] PRIMARY INTERFACE FOR TRANSPORT HANDLERS (long-poll / stream)
type Deliverer interface {
	Subscribe(ctx context.Context, consumer string) (registry.Connector, error)
	Unsubscribe(consumer string, connID uuid.UUID)
}

type DeliveryService struct {
	subs registry.Subscriber
}

func NewDeliveryService(subs registry.Subscriber) *DeliveryService {
	return &DeliveryService{subs: subs}
}

// [SUBSCRIBE] attaches a live session to the consumer's cell
func (s *DeliveryService) Subscribe(ctx context.Context, consumer string) (registry.Connector, error) {
	if consumer == "" {
		return nil, ErrInvalidConsumer
	}
	return s.subs.Subscribe(ctx, consumer), nil
}

// [UNSUBSCRIBE] closes the session; the cell is reclaimed by the janitor
func (s *DeliveryService) Unsubscribe(consumer string, connID uuid.UUID) {
	s.subs.Unsubscribe(consumer, connID)
}
