package models

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartModel struct {
	DB *sql.DB
}

func (m *CartModel) Items(ctx context.Context, userID uuid.UUID) ([]*CartItem, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, `SELECT ci.product_id, p.name, ci.size, ci.quantity, p.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY p.name, ci.size`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	items := []*CartItem{}
	for rows.Next() {
		it := &CartItem{}
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Size, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scan cart: %w", err)
		}
		it.Total = it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		items = append(items, it)
	}
	return items, rows.Err()
}

// Add puts quantity units of the product into the cart, adding to any
// quantity already there for the same size.
func (m *CartModel) Add(ctx context.Context, userID, productID uuid.UUID, size string, quantity int) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := m.DB.ExecContext(ctx, `INSERT INTO cart_items (user_id, product_id, size, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id, size) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		userID, productID, size, quantity)
	if err != nil {
		return fmt.Errorf("cart add: %w", err)
	}
	return nil
}

// Remove drops every size of the product from the cart.
func (m *CartModel) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := m.DB.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("cart remove: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRecord
	}
	return nil
}
