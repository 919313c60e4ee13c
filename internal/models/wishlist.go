package models

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type WishlistModel struct {
	DB *sql.DB
}

func (m *WishlistModel) Exists(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := m.DB.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM wishlist_items WHERE user_id = $1 AND product_id = $2)`, userID, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("wishlist lookup: %w", err)
	}
	return exists, nil
}

// Add is idempotent: adding a product twice keeps one row.
func (m *WishlistModel) Add(ctx context.Context, userID, productID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := m.DB.ExecContext(ctx, `INSERT INTO wishlist_items (user_id, product_id) VALUES ($1, $2)
		ON CONFLICT (user_id, product_id) DO NOTHING`, userID, productID)
	if err != nil {
		return fmt.Errorf("wishlist add: %w", err)
	}
	return nil
}

func (m *WishlistModel) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := m.DB.ExecContext(ctx, `DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("wishlist remove: %w", err)
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

// ProductIDs lists wishlisted product ids, most recently added first.
func (m *WishlistModel) ProductIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, `SELECT product_id FROM wishlist_items WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("wishlist list: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
