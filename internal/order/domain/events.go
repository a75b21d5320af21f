package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventNewOrder     EventType = "new-order"
	EventStatusUpdate EventType = "order-status-update"
	EventCompleted    EventType = "order-completed"
	EventCancelled    EventType = "order-cancelled"
	EventDeleted      EventType = "order-deleted"
)

// Event is the wire payload pushed to subscribed clients and consumed by the
// kitchen queue projector. Order is populated for new-order only; the other
// event types carry just the fields their audience needs.
type Event struct {
	Type          EventType   `json:"event"`
	OrderID       uuid.UUID   `json:"order_id"`
	Status        OrderStatus `json:"status,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	EstimatedTime int         `json:"estimated_time,omitempty"`
	Order         *Order      `json:"order,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

func NewOrderEvent(o Order) Event {
	return Event{Type: EventNewOrder, OrderID: o.ID, Status: o.Status, Order: &o, Timestamp: o.CreatedAt}
}

func StatusUpdateEvent(o Order, estimatedMinutes int) Event {
	return Event{Type: EventStatusUpdate, OrderID: o.ID, Status: o.Status, EstimatedTime: estimatedMinutes, Timestamp: o.UpdatedAt}
}

func CompletedEvent(o Order) Event {
	return Event{Type: EventCompleted, OrderID: o.ID, Status: o.Status, Timestamp: o.UpdatedAt}
}

func CancelledEvent(o Order, reason string) Event {
	return Event{Type: EventCancelled, OrderID: o.ID, Status: o.Status, Reason: reason, Timestamp: o.UpdatedAt}
}

func DeletedEvent(o Order) Event {
	return Event{Type: EventDeleted, OrderID: o.ID, Timestamp: time.Now().UTC()}
}
