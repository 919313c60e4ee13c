package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const maxOrderNumberAttempts = 5

var ErrOrderNotPayable = errors.New("models: order is not awaiting payment")

type OrderModel struct {
	DB      *sql.DB
	Numbers *OrderNumberGenerator
}

const orderColumns = `id, order_number, user_id, status, total, shipping_total, created_at`

type cartLine struct {
	productID   uuid.UUID
	size        string
	quantity    int
	price       decimal.Decimal
	shippingFee decimal.Decimal
}

// PlaceFromCart turns the user's cart into a pending order. Stock is
// decremented and the cart cleared in the same transaction. An order number
// collision restarts the transaction with a fresh number.
func (m *OrderModel) PlaceFromCart(ctx context.Context, userID uuid.UUID) (*Order, error) {
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		number, err := m.Numbers.Next()
		if err != nil {
			return nil, err
		}
		order, err := m.placeOnce(ctx, userID, number)
		if err == nil {
			return order, nil
		}
		if isUniqueViolation(err, "orders_order_number_key") {
			continue
		}
		return nil, err
	}
	return nil, ErrOrderNumberExhausted
}

func (m *OrderModel) placeOnce(ctx context.Context, userID uuid.UUID, number string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT ci.product_id, ci.size, ci.quantity, p.price, p.shipping_fee
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1 AND p.is_active
		ORDER BY ci.product_id, ci.size
		FOR UPDATE OF p`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	var lines []cartLine
	for rows.Next() {
		var l cartLine
		if err := rows.Scan(&l.productID, &l.size, &l.quantity, &l.price, &l.shippingFee); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cart: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	order := &Order{
		ID:          uuid.New(),
		OrderNumber: number,
		UserID:      userID,
		Status:      OrderPending,
		Payments:    []Payment{},
	}
	subtotal := decimal.Zero
	shipping := decimal.Zero
	charged := map[uuid.UUID]bool{}
	for _, l := range lines {
		subtotal = subtotal.Add(l.price.Mul(decimal.NewFromInt(int64(l.quantity))))
		if !charged[l.productID] {
			shipping = shipping.Add(l.shippingFee)
			charged[l.productID] = true
		}
		order.Items = append(order.Items, OrderItem{ProductID: l.productID, Size: l.size, Quantity: l.quantity, UnitPrice: l.price})
	}
	order.ShippingTotal = shipping
	order.Total = subtotal.Add(shipping)

	err = tx.QueryRowContext(ctx, `INSERT INTO orders (id, order_number, user_id, status, total, shipping_total)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		order.ID, order.OrderNumber, order.UserID, order.Status, order.Total, order.ShippingTotal).Scan(&order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, l := range lines {
		if l.size != "" {
			res, err := tx.ExecContext(ctx, `UPDATE product_sizes SET stock = stock - $3
				WHERE product_id = $1 AND size = $2 AND stock >= $3`, l.productID, l.size, l.quantity)
			if err := expectOneRow(res, err); err != nil {
				return nil, err
			}
		}
		res, err := tx.ExecContext(ctx, `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
			l.productID, l.quantity)
		if err := expectOneRow(res, err); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO order_items (order_id, product_id, size, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`, order.ID, l.productID, l.size, l.quantity, l.price); err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

func expectOneRow(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == constraint
}

func isForeignKeyViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503" && pqErr.Constraint == constraint
}

// ForUser returns the user's orders, newest first.
func (m *OrderModel) ForUser(ctx context.Context, userID uuid.UUID) ([]*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	orders, err := m.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return orders, m.loadLines(ctx, orders)
}

// All returns the most recent orders across every user.
func (m *OrderModel) All(ctx context.Context, limit int) ([]*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	orders, err := m.query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return orders, m.loadLines(ctx, orders)
}

// GetByNumber fetches one order. When owner is not uuid.Nil the order must
// belong to that user, otherwise ErrNoRecord is returned.
func (m *OrderModel) GetByNumber(ctx context.Context, number string, owner uuid.UUID) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	args := []any{number}
	if owner != uuid.Nil {
		q += ` AND user_id = $2`
		args = append(args, owner)
	}
	orders, err := m.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNoRecord
	}
	if err := m.loadLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders[0], nil
}

func (m *OrderModel) UpdateStatus(ctx context.Context, number, status string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	orders, err := m.query(ctx, `UPDATE orders SET status = $2 WHERE order_number = $1 RETURNING `+orderColumns, number, status)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNoRecord
	}
	return orders[0], m.loadLines(ctx, orders)
}

// RecordPayment logs a successful payment attempt for the full order total
// and marks the order paid. Only pending orders owned by userID qualify.
func (m *OrderModel) RecordPayment(ctx context.Context, number string, userID uuid.UUID, method string) (*Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var orderID uuid.UUID
	var status string
	var total decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT id, status, total FROM orders WHERE order_number = $1 AND user_id = $2 FOR UPDATE`,
		number, userID).Scan(&orderID, &status, &total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if status != OrderPending {
		return nil, ErrOrderNotPayable
	}

	p := &Payment{ID: uuid.New(), Method: method, Amount: total, Status: "succeeded"}
	err = tx.QueryRowContext(ctx, `INSERT INTO payments (id, order_id, method, amount, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`, p.ID, orderID, p.Method, p.Amount, p.Status).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, orderID, OrderPaid); err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// Stats reports revenue from orders that have been paid for and the total
// order count.
func (m *OrderModel) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s Stats
	err := m.DB.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(total) FILTER (WHERE status IN ('paid','shipped','delivered')), 0),
		COUNT(*)
		FROM orders`).Scan(&s.Revenue, &s.OrderCount)
	if err != nil {
		return Stats{}, fmt.Errorf("order stats: %w", err)
	}
	return s, nil
}

func (m *OrderModel) query(ctx context.Context, q string, args ...any) ([]*Order, error) {
	rows, err := m.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		o := &Order{Items: []OrderItem{}, Payments: []Payment{}}
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.Total, &o.ShippingTotal, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (m *OrderModel) loadLines(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(orders))
	byID := make(map[uuid.UUID]*Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := m.DB.QueryContext(ctx, `SELECT order_id, product_id, size, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, product_id, size`, idArray(ids))
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	for rows.Next() {
		var oid uuid.UUID
		var it OrderItem
		if err := rows.Scan(&oid, &it.ProductID, &it.Size, &it.Quantity, &it.UnitPrice); err != nil {
			rows.Close()
			return fmt.Errorf("scan order item: %w", err)
		}
		byID[oid].Items = append(byID[oid].Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = m.DB.QueryContext(ctx, `SELECT order_id, id, method, amount, status, created_at
		FROM payments WHERE order_id = ANY($1::uuid[]) ORDER BY created_at`, idArray(ids))
	if err != nil {
		return fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var oid uuid.UUID
		var p Payment
		if err := rows.Scan(&oid, &p.ID, &p.Method, &p.Amount, &p.Status, &p.CreatedAt); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		byID[oid].Payments = append(byID[oid].Payments, p)
	}
	return rows.Err()
}
