// Package notify is the stateless fan-out layer between the order lifecycle
// manager and its three audiences. Delivery is best-effort at-most-once: no
// durable queue, no acknowledgement, no retry. Disconnected subscribers miss
// events and reconcile with a full reload.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dinehub/order-platform/internal/order/domain"
)

const (
	RoomAdmin   = "admin"
	RoomKitchen = "kitchen"
)

// CustomerRoom names the per-order room a customer tracks their order in.
func CustomerRoom(orderID uuid.UUID) string {
	return "customer-" + orderID.String()
}

// sendBuffer is the per-subscriber queue. A subscriber that falls this far
// behind starts losing events rather than blocking the publisher.
const sendBuffer = 32

// Subscription receives the JSON-encoded events of every room it has joined.
// C is closed when the subscription is cancelled or the hub shuts down.
type Subscription struct {
	C     chan []byte
	rooms map[string]struct{}
}

// Hub routes events to room subscribers. It is an injected service with an
// explicit Close, never package-level state.
type Hub struct {
	log *slog.Logger

	mu     sync.RWMutex
	rooms  map[string]map[*Subscription]struct{}
	subs   map[*Subscription]struct{}
	closed bool
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:   log,
		rooms: make(map[string]map[*Subscription]struct{}),
		subs:  make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber, optionally pre-joined to rooms.
func (h *Hub) Subscribe(rooms ...string) *Subscription {
	sub := &Subscription{
		C:     make(chan []byte, sendBuffer),
		rooms: make(map[string]struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.C)
		return sub
	}
	h.subs[sub] = struct{}{}
	for _, room := range rooms {
		h.join(sub, room)
	}
	return sub
}

func (h *Hub) Join(sub *Subscription, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if _, ok := h.subs[sub]; !ok {
		return
	}
	h.join(sub, room)
}

func (h *Hub) join(sub *Subscription, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Subscription]struct{})
	}
	h.rooms[room][sub] = struct{}{}
	sub.rooms[room] = struct{}{}
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	h.remove(sub)
}

func (h *Hub) remove(sub *Subscription) {
	for room := range sub.rooms {
		delete(h.rooms[room], sub)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.subs, sub)
	close(sub.C)
}

// Publish fans the event out to every subscriber of its target rooms. It
// never blocks: a subscriber with a full queue is skipped for this event.
func (h *Hub) Publish(ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("event marshal failed", "event", ev.Type, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	// A subscriber in several target rooms gets the event once.
	seen := make(map[*Subscription]struct{})
	dropped := 0
	for _, room := range roomsFor(ev) {
		for sub := range h.rooms[room] {
			if _, dup := seen[sub]; dup {
				continue
			}
			seen[sub] = struct{}{}
			select {
			case sub.C <- payload:
			default:
				dropped++
			}
		}
	}
	if dropped > 0 {
		h.log.Warn("event dropped for slow subscribers", "event", ev.Type, "order_id", ev.OrderID, "dropped", dropped)
	}
}

// send queues a payload for a single subscriber, best-effort. Used for
// per-connection control messages that must not race the room fan-out.
func (h *Hub) send(sub *Subscription, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	select {
	case sub.C <- payload:
	default:
	}
}

// Close cancels every subscription. Publishing after Close is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		h.remove(sub)
	}
}

// roomsFor maps an event to its audience. Status updates additionally reach
// the customer tracking that order; completion and cancellation summaries are
// staff-only.
func roomsFor(ev domain.Event) []string {
	switch ev.Type {
	case domain.EventStatusUpdate, domain.EventDeleted:
		return []string{RoomAdmin, RoomKitchen, CustomerRoom(ev.OrderID)}
	default:
		return []string{RoomAdmin, RoomKitchen}
	}
}
