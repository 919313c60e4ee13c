package models

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type AddressModel struct {
	DB *sql.DB
}

const addressColumns = `id, user_id, recipient, line1, line2, city, postal_code, country, phone, is_default, created_at`

func scanAddress(row scanner) (*Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.Recipient, &a.Line1, &a.Line2, &a.City, &a.PostalCode,
		&a.Country, &a.Phone, &a.IsDefault, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ForUser lists the user's addresses, default first.
func (m *AddressModel) ForUser(ctx context.Context, userID uuid.UUID) ([]*Address, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, `SELECT `+addressColumns+` FROM addresses
		WHERE user_id = $1 ORDER BY is_default DESC, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	out := []*Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Insert stores a new address. The user's first address becomes the
// default. When a concurrent insert claims the default first, the address
// is stored as a non-default one.
func (m *AddressModel) Insert(ctx context.Context, a *Address) (*Address, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	created, err := m.insert(ctx, a, `NOT EXISTS (SELECT 1 FROM addresses WHERE user_id = $2)`)
	if isUniqueViolation(err, "addresses_one_default_per_user") {
		created, err = m.insert(ctx, a, `false`)
	}
	if err != nil {
		return nil, fmt.Errorf("insert address: %w", err)
	}
	return created, nil
}

func (m *AddressModel) insert(ctx context.Context, a *Address, isDefault string) (*Address, error) {
	row := m.DB.QueryRowContext(ctx, `INSERT INTO addresses
		(id, user_id, recipient, line1, line2, city, postal_code, country, phone, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, `+isDefault+`)
		RETURNING `+addressColumns,
		uuid.New(), a.UserID, a.Recipient, a.Line1, a.Line2, a.City, a.PostalCode, a.Country, a.Phone)
	return scanAddress(row)
}

// SetDefault makes addressID the user's only default address. The user's
// address rows are locked for the duration so concurrent calls serialize.
// An address owned by someone else is reported as ErrNoRecord.
func (m *AddressModel) SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*Address, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM addresses WHERE user_id = $1 ORDER BY id FOR UPDATE`, userID)
	if err != nil {
		return nil, fmt.Errorf("lock addresses: %w", err)
	}
	owned := false
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		if id == addressID {
			owned = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !owned {
		return nil, ErrNoRecord
	}

	if _, err := tx.ExecContext(ctx, `UPDATE addresses SET is_default = false
		WHERE user_id = $1 AND id <> $2 AND is_default`, userID, addressID); err != nil {
		return nil, fmt.Errorf("clear default: %w", err)
	}
	a, err := scanAddress(tx.QueryRowContext(ctx, `UPDATE addresses SET is_default = true
		WHERE id = $1 AND user_id = $2 RETURNING `+addressColumns, addressID, userID))
	if err != nil {
		return nil, fmt.Errorf("set default: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}
