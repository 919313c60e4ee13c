package models

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type ReviewModel struct {
	DB *sql.DB
}

func (m *ReviewModel) Insert(ctx context.Context, r *Review) (*Review, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	r.ID = uuid.New()
	err := m.DB.QueryRowContext(ctx, `INSERT INTO reviews (id, product_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		r.ID, r.ProductID, r.UserID, r.Rating, r.Comment).Scan(&r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert review: %w", err)
	}
	return r, nil
}

func (m *ReviewModel) ForProduct(ctx context.Context, productID uuid.UUID) ([]*Review, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, `SELECT id, product_id, user_id, rating, comment, created_at
		FROM reviews WHERE product_id = $1 ORDER BY created_at DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*Review{}
	for rows.Next() {
		r := &Review{}
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}
