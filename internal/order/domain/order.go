package domain

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// statusRank orders the preparation pipeline. Cancelled sits outside the
// pipeline and is reachable from any non-terminal status.
var statusRank = map[OrderStatus]int{
	StatusPending:   1,
	StatusConfirmed: 2,
	StatusPreparing: 3,
	StatusReady:     4,
	StatusCompleted: 5,
}

func ParseStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	switch st {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidStatus)
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether an order may move from one status to another.
// Forward moves along the pipeline may skip stages; any non-terminal order may
// be cancelled; terminal orders are frozen. Backward moves are rejected here
// and remain possible only through the bulk staff override.
func CanTransition(from, to OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return statusRank[to] > statusRank[from]
}

type Order struct {
	ID                  uuid.UUID       `json:"id"`
	OrderNumber         string          `json:"order_number"`
	TableID             int64           `json:"table_id"`
	TableNumber         int             `json:"table_number"`
	CustomerName        string          `json:"customer_name"`
	Items               []OrderItem     `json:"items"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	Status              OrderStatus     `json:"status"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type OrderItem struct {
	MenuItemID      int64           `json:"menu_item_id"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	SpecialRequests string          `json:"special_requests,omitempty"`
}

// NewOrder assembles a pending order from already-priced items. Line totals
// and the order total are derived here so they cannot drift from the unit
// price snapshots.
func NewOrder(table Table, customerName string, items []OrderItem, instructions string) Order {
	total := decimal.Zero
	for i := range items {
		items[i].TotalPrice = items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity)))
		total = total.Add(items[i].TotalPrice)
	}
	now := time.Now().UTC()
	return Order{
		ID:                  uuid.New(),
		OrderNumber:         NewOrderNumber(now),
		TableID:             table.ID,
		TableNumber:         table.Number,
		CustomerName:        customerName,
		Items:               items,
		TotalAmount:         total,
		Status:              StatusPending,
		SpecialInstructions: instructions,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// NewOrderNumber generates a human-facing number such as ORD-20260831-4F2A.
// The random tail can collide under load, so the store enforces a unique
// constraint and regenerates on conflict.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%04X", now.UTC().Format("20060102"), rand.Uint32()&0xFFFF)
}

// MenuItem is the slice of the catalog the order core reads: the source of
// name and unit price snapshots taken at creation time.
type MenuItem struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

type Table struct {
	ID     int64
	Number int
	Active bool
}

// Filter narrows List results. Zero fields are ignored; set fields combine
// with AND.
type Filter struct {
	Status   *OrderStatus
	TableID  *int64
	DateFrom *time.Time
	DateTo   *time.Time
	Query    string
}

type Stats struct {
	TotalOrders  int                 `json:"total_orders"`
	ByStatus     map[OrderStatus]int `json:"by_status"`
	Revenue      decimal.Decimal     `json:"revenue"`
	RevenueToday decimal.Decimal     `json:"revenue_today"`
}
