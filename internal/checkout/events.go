package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/google/uuid"
)

// EventOrderPlaced is the event type attribute of order placement messages.
const EventOrderPlaced = "order.placed"

const eventVersion = 1

// OrderPlacedEvent is emitted once the order service has confirmed an order.
type OrderPlacedEvent struct {
	BuyerID     string    `json:"buyerId"`
	CheckoutID  string    `json:"checkoutId"`
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Currency    string    `json:"currency"`
	TotalCents  int64     `json:"totalCents"`
	ItemCount   int       `json:"itemCount"`
	PlacedAt    time.Time `json:"placedAt"`
}

// EventPublisher announces checkout outcomes to downstream consumers.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event OrderPlacedEvent) error
}

type topicPublisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
	OrdersTopic() string
}

type eventEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// PubSubEventPublisher publishes checkout events to the orders topic.
type PubSubEventPublisher struct {
	client topicPublisher
}

// NewPubSubEventPublisher wraps a Pub/Sub client.
func NewPubSubEventPublisher(client topicPublisher) (*PubSubEventPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client required")
	}
	if client.OrdersTopic() == "" {
		return nil, fmt.Errorf("orders topic required")
	}
	return &PubSubEventPublisher{client: client}, nil
}

// PublishOrderPlaced sends the event wrapped in a versioned envelope.
func (p *PubSubEventPublisher) PublishOrderPlaced(ctx context.Context, event OrderPlacedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal order placed event")
	}
	envelope := eventEnvelope{
		Version:    eventVersion,
		EventID:    uuid.NewString(),
		EventType:  EventOrderPlaced,
		OccurredAt: event.PlacedAt,
		Data:       data,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal event envelope")
	}

	attrs := map[string]string{
		"event_type":  EventOrderPlaced,
		"event_id":    envelope.EventID,
		"buyer_id":    event.BuyerID,
		"checkout_id": event.CheckoutID,
	}
	if _, err := p.client.Publish(ctx, p.client.OrdersTopic(), body, attrs); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish order placed event")
	}
	return nil
}
