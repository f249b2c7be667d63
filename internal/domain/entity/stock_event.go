package entity

import "time"

// Stock event types published after a successful catalog mutation.
const (
	EventSweetCreated   = "sweet.created"
	EventSweetUpdated   = "sweet.updated"
	EventSweetDeleted   = "sweet.deleted"
	EventSweetPurchased = "sweet.purchased"
	EventSweetRestocked = "sweet.restocked"
)

// StockEvent is the broker payload describing a stock change.
// It never carries buyer identity.
type StockEvent struct {
	Type       string    `json:"type"`
	SweetID    string    `json:"sweet_id"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewStockEvent(eventType string, s Sweet, at time.Time) StockEvent {
	return StockEvent{
		Type:       eventType,
		SweetID:    s.ID,
		Name:       s.Name,
		Quantity:   s.Quantity,
		OccurredAt: at.UTC(),
	}
}
