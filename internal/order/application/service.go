package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dinehub/order-platform/internal/order/domain"
)

// Service is the order lifecycle manager: the sole writer of order state.
// Notifications are published only after the corresponding store write has
// committed; a failed write publishes nothing.
type Service struct {
	log     *slog.Logger
	repo    OrderRepository
	catalog Catalog
	notify  Broadcaster
}

func NewService(log *slog.Logger, repo OrderRepository, catalog Catalog, notify Broadcaster) *Service {
	return &Service{log: log, repo: repo, catalog: catalog, notify: notify}
}

type CreateOrderInput struct {
	TableID             int64
	CustomerName        string
	Items               []CreateItemInput
	SpecialInstructions string
}

type CreateItemInput struct {
	MenuItemID      int64
	Quantity        int
	SpecialRequests string
}

// CreateOrder validates the request, snapshots catalog prices, and persists
// the order atomically. Unit prices always come from the catalog at this
// moment; a price a client tries to supply never reaches this layer.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if strings.TrimSpace(in.CustomerName) == "" {
		return domain.Order{}, fmt.Errorf("customer_name: %w", domain.ErrMissingField)
	}
	if len(in.Items) == 0 {
		return domain.Order{}, domain.ErrNoItems
	}
	for _, it := range in.Items {
		if it.MenuItemID == 0 {
			return domain.Order{}, fmt.Errorf("menu_item_id: %w", domain.ErrMissingField)
		}
		if it.Quantity < 1 {
			return domain.Order{}, domain.ErrInvalidQuantity
		}
	}

	table, err := s.catalog.Table(ctx, in.TableID)
	if err != nil {
		return domain.Order{}, err
	}
	if !table.Active {
		return domain.Order{}, domain.ErrTableInactive
	}

	// Single catalog pass: the same resolution backs both the total and the
	// persisted line snapshots.
	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		mi, err := s.catalog.MenuItem(ctx, it.MenuItemID)
		if err != nil {
			return domain.Order{}, err
		}
		items = append(items, domain.OrderItem{
			MenuItemID:      mi.ID,
			Name:            mi.Name,
			Quantity:        it.Quantity,
			UnitPrice:       mi.Price,
			SpecialRequests: it.SpecialRequests,
		})
	}

	o := domain.NewOrder(table, strings.TrimSpace(in.CustomerName), items, in.SpecialInstructions)
	created, err := s.repo.Create(ctx, o)
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.log.Info("order created", "order_id", created.ID, "order_number", created.OrderNumber, "total", created.TotalAmount)
	s.notify.Publish(domain.NewOrderEvent(created))
	return created, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, f domain.Filter) ([]domain.Order, error) {
	return s.repo.List(ctx, f)
}

type UpdateStatusInput struct {
	Status           string
	Reason           string
	EstimatedMinutes int
}

// UpdateStatus moves a single order through the status pipeline. Illegal
// transitions are rejected before anything is written; concurrent updates on
// the same order resolve last-write-wins.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, in UpdateStatusInput) (domain.Order, error) {
	status, err := domain.ParseStatus(in.Status)
	if err != nil {
		return domain.Order{}, err
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !domain.CanTransition(current.Status, status) {
		return domain.Order{}, fmt.Errorf("%s -> %s: %w", current.Status, status, domain.ErrInvalidTransition)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update status: %w", err)
	}

	s.log.Info("order status updated", "order_id", id, "from", current.Status, "to", status)
	s.notify.Publish(domain.StatusUpdateEvent(updated, in.EstimatedMinutes))
	switch status {
	case domain.StatusCompleted:
		s.notify.Publish(domain.CompletedEvent(updated))
	case domain.StatusCancelled:
		s.notify.Publish(domain.CancelledEvent(updated, in.Reason))
	}
	return updated, nil
}

// BulkUpdateStatus applies one status to a set of orders in a single store
// round-trip. It is the staff override path: only enum membership is checked,
// so admins can correct mistakes the transition table would refuse. One
// status-update event still fires per order so push-based clients stay
// correct without a full reload.
func (s *Service) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, statusRaw string) ([]domain.Order, error) {
	status, err := domain.ParseStatus(statusRaw)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("order ids: %w", domain.ErrMissingField)
	}

	updated, err := s.repo.BulkUpdateStatus(ctx, ids, status)
	if err != nil {
		return nil, fmt.Errorf("bulk update status: %w", err)
	}

	s.log.Info("bulk status update", "requested", len(ids), "updated", len(updated), "status", status)
	for _, o := range updated {
		s.notify.Publish(domain.StatusUpdateEvent(o, 0))
		switch status {
		case domain.StatusCompleted:
			s.notify.Publish(domain.CompletedEvent(o))
		case domain.StatusCancelled:
			s.notify.Publish(domain.CancelledEvent(o, ""))
		}
	}
	return updated, nil
}

// DeleteOrder removes the order and its items and tells subscribed clients,
// so reconciliation does not have to wait for the next full reload.
func (s *Service) DeleteOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order deleted", "order_id", id, "order_number", deleted.OrderNumber)
	s.notify.Publish(domain.DeletedEvent(deleted))
	return deleted, nil
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	return s.repo.Stats(ctx)
}
