package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dinehub/order-platform/internal/order/domain"
)

const uniqueViolation = "23505"

// createAttempts bounds the order-number regeneration loop on unique-constraint
// conflicts.
const createAttempts = 3

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Create persists the order and all of its items in one transaction: either
// every row commits or none does. A collision on order_number regenerates the
// number and retries the whole transaction.
func (r *Repository) Create(ctx context.Context, o domain.Order) (domain.Order, error) {
	for attempt := 0; ; attempt++ {
		err := r.createTx(ctx, o)
		if err == nil {
			return r.Get(ctx, o.ID)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && strings.Contains(pgErr.ConstraintName, "order_number") && attempt < createAttempts-1 {
			o.OrderNumber = domain.NewOrderNumber(time.Now())
			r.log.Warn("order number collision, regenerating", "order_id", o.ID, "attempt", attempt+1)
			continue
		}
		return domain.Order{}, err
	}
}

func (r *Repository) createTx(ctx context.Context, o domain.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders (id, order_number, table_id, customer_name, total_amount, status, special_instructions, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		o.ID, o.OrderNumber, o.TableID, o.CustomerName, o.TotalAmount.String(), o.Status, o.SpecialInstructions, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, menu_item_id, name, quantity, unit_price, total_price, special_requests)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			o.ID, item.MenuItemID, item.Name, item.Quantity, item.UnitPrice.String(), item.TotalPrice.String(), item.SpecialRequests)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const orderColumns = `o.id, o.order_number, o.table_id, t.table_number, o.customer_name,
	o.total_amount::text, o.status, o.special_instructions, o.created_at, o.updated_at`

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+`
		FROM orders o JOIN tables t ON t.id = o.table_id
		WHERE o.id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, err
	}

	items, err := r.loadItems(ctx, []uuid.UUID{id})
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items[id]
	return o, nil
}

// List applies the filter fields with AND; the freetext query matches customer
// name or order number case-insensitively. Newest orders first.
func (r *Repository) List(ctx context.Context, f domain.Filter) ([]domain.Order, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT ` + orderColumns + ` FROM orders o JOIN tables t ON t.id = o.table_id WHERE 1=1`)
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != nil {
		q.WriteString(` AND o.status = ` + arg(*f.Status))
	}
	if f.TableID != nil {
		q.WriteString(` AND o.table_id = ` + arg(*f.TableID))
	}
	if f.DateFrom != nil {
		q.WriteString(` AND o.created_at >= ` + arg(*f.DateFrom))
	}
	if f.DateTo != nil {
		q.WriteString(` AND o.created_at <= ` + arg(*f.DateTo))
	}
	if f.Query != "" {
		p := arg("%" + f.Query + "%")
		q.WriteString(` AND (o.customer_name ILIKE ` + p + ` OR o.order_number ILIKE ` + p + `)`)
	}
	q.WriteString(` ORDER BY o.created_at DESC`)

	rows, err := r.pool.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	var ids []uuid.UUID
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (domain.Order, error) {
	ct, err := r.pool.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, status)
	if err != nil {
		return domain.Order{}, err
	}
	if ct.RowsAffected() == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return r.Get(ctx, id)
}

func (r *Repository) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status domain.OrderStatus) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id = ANY($1) RETURNING id`, ids, status)
	if err != nil {
		return nil, err
	}
	updated := make([]uuid.UUID, 0, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		updated = append(updated, id)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	orders := make([]domain.Order, 0, len(updated))
	for _, id := range updated {
		o, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// Delete removes the items first, then the order, in one transaction, and
// returns the order as it stood before deletion.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	o, err := r.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, id); err != nil {
		return domain.Order{}, err
	}
	ct, err := tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return domain.Order{}, err
	}
	if ct.RowsAffected() == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) Stats(ctx context.Context) (domain.Stats, error) {
	stats := domain.Stats{ByStatus: map[domain.OrderStatus]int{}}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return domain.Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var st domain.OrderStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return domain.Stats{}, err
		}
		stats.ByStatus[st] = n
		stats.TotalOrders += n
	}
	if rows.Err() != nil {
		return domain.Stats{}, rows.Err()
	}

	var revenue, today string
	err = r.pool.QueryRow(ctx, `SELECT
			COALESCE(SUM(total_amount), 0)::text,
			COALESCE(SUM(total_amount) FILTER (WHERE created_at::date = now()::date), 0)::text
		FROM orders WHERE status = $1`, domain.StatusCompleted).Scan(&revenue, &today)
	if err != nil {
		return domain.Stats{}, err
	}
	if stats.Revenue, err = decimal.NewFromString(revenue); err != nil {
		return domain.Stats{}, err
	}
	if stats.RevenueToday, err = decimal.NewFromString(today); err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}

func (r *Repository) loadItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT order_id, menu_item_id, name, quantity, unit_price::text, total_price::text, special_requests
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]domain.OrderItem, len(ids))
	for rows.Next() {
		var orderID uuid.UUID
		var it domain.OrderItem
		var unit, total string
		if err := rows.Scan(&orderID, &it.MenuItemID, &it.Name, &it.Quantity, &unit, &total, &it.SpecialRequests); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, err
		}
		if it.TotalPrice, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], it)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var total string
	err := row.Scan(&o.ID, &o.OrderNumber, &o.TableID, &o.TableNumber, &o.CustomerName,
		&total, &o.Status, &o.SpecialInstructions, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}
