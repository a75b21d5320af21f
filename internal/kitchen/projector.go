// Package kitchen maintains the kitchen display's view of the order queue:
// push events merged with periodic full reloads into one consistent, sorted,
// self-expiring projection.
package kitchen

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dinehub/order-platform/internal/order/domain"
)

// DefaultGraceWindow keeps a just-completed order visible in the active grid
// before it drops out, so staff see the finished state.
const DefaultGraceWindow = 5 * time.Second

// statusPriority is the primary sort key of the queue. Cancelled is not part
// of the preparation pipeline and sorts after everything else.
var statusPriority = map[domain.OrderStatus]int{
	domain.StatusPending:   1,
	domain.StatusConfirmed: 2,
	domain.StatusPreparing: 3,
	domain.StatusReady:     4,
	domain.StatusCompleted: 5,
	domain.StatusCancelled: 6,
}

type entry struct {
	order domain.Order
	// inGrace marks a completed order still rendered in the active grid.
	inGrace bool
}

// Projector folds push events and reload snapshots into the displayed state.
// All merging is keyed by order id with last-write-wins semantics: the status
// shown is always the last one applied, whatever order events arrive in, and
// applying an event twice changes nothing.
type Projector struct {
	grace    time.Duration
	onChange func()

	mu     sync.Mutex
	byID   map[uuid.UUID]*entry
	timers map[uuid.UUID]*time.Timer
}

func NewProjector(grace time.Duration) *Projector {
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	return &Projector{
		grace:  grace,
		byID:   make(map[uuid.UUID]*entry),
		timers: make(map[uuid.UUID]*time.Timer),
	}
}

// OnChange registers a hook invoked after every state change, outside the
// projector lock. Set it before the first Apply.
func (p *Projector) OnChange(fn func()) {
	p.onChange = fn
}

func (p *Projector) notifyChange(changed bool) {
	if changed && p.onChange != nil {
		p.onChange()
	}
}

// ApplyEvent merges one push event into the view.
func (p *Projector) ApplyEvent(ev domain.Event) {
	p.mu.Lock()
	changed := p.apply(ev)
	p.mu.Unlock()
	p.notifyChange(changed)
}

func (p *Projector) apply(ev domain.Event) bool {
	switch ev.Type {
	case domain.EventNewOrder:
		if ev.Order == nil {
			return false
		}
		return p.upsert(*ev.Order)

	case domain.EventStatusUpdate, domain.EventCompleted, domain.EventCancelled:
		e, ok := p.byID[ev.OrderID]
		if !ok {
			// Unknown id: the order predates our subscription. The next full
			// reload reconciles it.
			return false
		}
		if ev.Status == "" || e.order.Status == ev.Status {
			return false
		}
		wasCompleted := e.order.Status == domain.StatusCompleted
		e.order.Status = ev.Status
		if !ev.Timestamp.IsZero() {
			e.order.UpdatedAt = ev.Timestamp
		}
		if ev.Status == domain.StatusCompleted {
			if !wasCompleted {
				e.inGrace = true
				p.startGrace(ev.OrderID)
			}
		} else {
			// A late non-completed event reactivates the order.
			e.inGrace = false
			p.stopGrace(ev.OrderID)
		}
		return true

	case domain.EventDeleted:
		if _, ok := p.byID[ev.OrderID]; !ok {
			return false
		}
		delete(p.byID, ev.OrderID)
		p.stopGrace(ev.OrderID)
		return true
	}
	return false
}

func (p *Projector) upsert(o domain.Order) bool {
	if e, ok := p.byID[o.ID]; ok {
		if e.order.Status == o.Status && e.order.UpdatedAt.Equal(o.UpdatedAt) {
			return false
		}
	}
	p.byID[o.ID] = &entry{order: o, inGrace: o.Status == domain.StatusCompleted && p.inGraceNow(o.ID)}
	if o.Status != domain.StatusCompleted {
		p.stopGrace(o.ID)
	}
	return true
}

func (p *Projector) inGraceNow(id uuid.UUID) bool {
	_, ok := p.timers[id]
	return ok
}

func (p *Projector) startGrace(id uuid.UUID) {
	p.stopGrace(id)
	p.timers[id] = time.AfterFunc(p.grace, func() { p.expire(id) })
}

func (p *Projector) stopGrace(id uuid.UUID) {
	if t, ok := p.timers[id]; ok {
		t.Stop()
		delete(p.timers, id)
	}
}

func (p *Projector) expire(id uuid.UUID) {
	p.mu.Lock()
	changed := false
	delete(p.timers, id)
	if e, ok := p.byID[id]; ok && e.inGrace {
		e.inGrace = false
		changed = true
	}
	p.mu.Unlock()
	p.notifyChange(changed)
}

// ApplySnapshot replaces the view with a full-reload result. Orders still in
// their grace window keep it if the snapshot agrees they are completed;
// completed orders first seen through a snapshot get none (they finished
// while we were disconnected).
func (p *Projector) ApplySnapshot(orders []domain.Order) {
	p.mu.Lock()
	next := make(map[uuid.UUID]*entry, len(orders))
	for _, o := range orders {
		e := &entry{order: o}
		if o.Status == domain.StatusCompleted {
			if prev, ok := p.byID[o.ID]; ok && prev.inGrace {
				e.inGrace = true
			}
		}
		next[o.ID] = e
	}
	for id := range p.timers {
		if e, ok := next[id]; !ok || !e.inGrace {
			p.stopGrace(id)
		}
	}
	p.byID = next
	p.mu.Unlock()
	p.notifyChange(true)
}

// Active returns the sorted working queue: every non-completed order plus
// completed orders still inside their grace window.
func (p *Projector) Active() []domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Order
	for _, e := range p.byID {
		if e.order.Status != domain.StatusCompleted || e.inGrace {
			out = append(out, e.order)
		}
	}
	sortQueue(out)
	return out
}

// Completed returns every completed order, grace window or not.
func (p *Projector) Completed() []domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Order
	for _, e := range p.byID {
		if e.order.Status == domain.StatusCompleted {
			out = append(out, e.order)
		}
	}
	sortQueue(out)
	return out
}

// Filter is a pure projection over the current state: "all", "completed", or
// a single status name. It never mutates the underlying sequences.
func (p *Projector) Filter(view string) []domain.Order {
	switch view {
	case "all", "":
		return p.Active()
	case string(domain.StatusCompleted):
		return p.Completed()
	}

	st, err := domain.ParseStatus(view)
	if err != nil {
		return nil
	}
	var out []domain.Order
	for _, o := range p.Active() {
		if o.Status == st {
			out = append(out, o)
		}
	}
	return out
}

// ClearCompleted empties the completed list locally. Server state is
// untouched; the orders reappear only if a later reload still carries them
// and they are still completed.
func (p *Projector) ClearCompleted() {
	p.mu.Lock()
	changed := false
	for id, e := range p.byID {
		if e.order.Status == domain.StatusCompleted {
			delete(p.byID, id)
			p.stopGrace(id)
			changed = true
		}
	}
	p.mu.Unlock()
	p.notifyChange(changed)
}

// Close stops all pending grace timers.
func (p *Projector) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.timers {
		p.stopGrace(id)
	}
}

func sortQueue(orders []domain.Order) {
	slices.SortStableFunc(orders, func(a, b domain.Order) int {
		if d := statusPriority[a.Status] - statusPriority[b.Status]; d != 0 {
			return d
		}
		// Newest first within the same status.
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
