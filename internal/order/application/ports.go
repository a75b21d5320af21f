package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/dinehub/order-platform/internal/order/domain"
)

// OrderRepository is the transactional order store. Create persists the order
// and its items as one atomic unit. Mutations return the hydrated order as it
// stands after the write.
type OrderRepository interface {
	Create(ctx context.Context, o domain.Order) (domain.Order, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Order, error)
	List(ctx context.Context, f domain.Filter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (domain.Order, error)
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status domain.OrderStatus) ([]domain.Order, error)
	Delete(ctx context.Context, id uuid.UUID) (domain.Order, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

// Catalog is the read-only gateway into the menu and table registries.
type Catalog interface {
	MenuItem(ctx context.Context, id int64) (domain.MenuItem, error)
	Table(ctx context.Context, id int64) (domain.Table, error)
}

// Broadcaster fans an event out to its subscriber rooms. Fire-and-forget: no
// acknowledgement, no retry, and it must never block the caller.
type Broadcaster interface {
	Publish(ev domain.Event)
}
