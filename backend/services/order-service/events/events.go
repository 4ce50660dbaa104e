package events

import (
	"context"
	"encoding/json"
	"time"
)

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusUpdated = "order.status_updated"
)

// Event is the envelope written to the outbound order stream.
type Event struct {
	Type       string          `json:"type"`
	OrderID    int64           `json:"order_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Order      json.RawMessage `json:"order"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// New wraps order in an Event of the given type.
func New(eventType string, orderID int64, order interface{}) (Event, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:       eventType,
		OrderID:    orderID,
		OccurredAt: time.Now().UTC(),
		Order:      body,
	}, nil
}
