// Package postgres implements the read-only catalog and table gateway the
// order core resolves prices and table state through.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dinehub/order-platform/internal/order/domain"
)

type Gateway struct {
	pool *pgxpool.Pool
}

func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{pool: pool}
}

// MenuItem returns the current name and price snapshot source for an item.
// Items taken off the menu are indistinguishable from missing ones.
func (g *Gateway) MenuItem(ctx context.Context, id int64) (domain.MenuItem, error) {
	var mi domain.MenuItem
	var price string
	err := g.pool.QueryRow(ctx, `SELECT id, name, price::text FROM menu_items WHERE id=$1 AND available`, id).
		Scan(&mi.ID, &mi.Name, &price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MenuItem{}, domain.ErrMenuItemNotFound
		}
		return domain.MenuItem{}, err
	}
	if mi.Price, err = decimal.NewFromString(price); err != nil {
		return domain.MenuItem{}, err
	}
	return mi, nil
}

func (g *Gateway) Table(ctx context.Context, id int64) (domain.Table, error) {
	var t domain.Table
	err := g.pool.QueryRow(ctx, `SELECT id, table_number, active FROM tables WHERE id=$1`, id).
		Scan(&t.ID, &t.Number, &t.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Table{}, domain.ErrTableNotFound
		}
		return domain.Table{}, err
	}
	return t, nil
}
