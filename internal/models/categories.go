package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type CategoryModel struct {
	DB *sql.DB
}

const parentFKey = "categories_parent_id_fkey"

// Insert creates a category. A parentID that names no category is reported
// as ErrUnknownParent.
func (m *CategoryModel) Insert(ctx context.Context, name string, parentID *uuid.UUID) (*Category, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	c := &Category{ID: uuid.New(), Name: name, ParentID: parentID}
	_, err := m.DB.ExecContext(ctx, `INSERT INTO categories (id, name, parent_id) VALUES ($1, $2, $3)`,
		c.ID, c.Name, parentArg(parentID))
	if err != nil {
		if isForeignKeyViolation(err, parentFKey) {
			return nil, ErrUnknownParent
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (m *CategoryModel) All(ctx context.Context) ([]*Category, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, `SELECT id, name, parent_id FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	cats := []*Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// SetParent moves a category under parentID, or to the root when parentID
// is nil. Moving a category beneath one of its own descendants is rejected
// with ErrCategoryCycle, and a parent that does not exist with
// ErrUnknownParent.
func (m *CategoryModel) SetParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) (*Category, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Serialize tree edits so two concurrent moves cannot form a loop.
	if _, err := tx.ExecContext(ctx, `LOCK TABLE categories IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return nil, fmt.Errorf("lock categories: %w", err)
	}

	parents := map[uuid.UUID]uuid.UUID{}
	known := map[uuid.UUID]bool{}
	rows, err := tx.QueryContext(ctx, `SELECT id, parent_id FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("query tree: %w", err)
	}
	found := false
	for rows.Next() {
		var cid uuid.UUID
		var parent uuid.NullUUID
		if err := rows.Scan(&cid, &parent); err != nil {
			rows.Close()
			return nil, err
		}
		known[cid] = true
		if cid == id {
			found = true
		}
		if parent.Valid {
			parents[cid] = parent.UUID
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoRecord
	}
	if parentID != nil && !known[*parentID] {
		return nil, ErrUnknownParent
	}
	if parentID != nil && CreatesCycle(parents, id, *parentID) {
		return nil, ErrCategoryCycle
	}

	c, err := scanCategory(tx.QueryRowContext(ctx,
		`UPDATE categories SET parent_id = $2 WHERE id = $1 RETURNING id, name, parent_id`, id, parentArg(parentID)))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrNoRecord
		case isForeignKeyViolation(err, parentFKey):
			return nil, ErrUnknownParent
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

// CreatesCycle reports whether giving id the parent newParent would make id
// one of its own ancestors. parents maps each category to its parent.
func CreatesCycle(parents map[uuid.UUID]uuid.UUID, id, newParent uuid.UUID) bool {
	seen := map[uuid.UUID]bool{}
	for cur := newParent; ; {
		if cur == id {
			return true
		}
		if seen[cur] {
			// Pre-existing loop that does not involve id.
			return false
		}
		seen[cur] = true
		next, ok := parents[cur]
		if !ok {
			return false
		}
		cur = next
	}
}

func scanCategory(row scanner) (*Category, error) {
	var c Category
	var parent uuid.NullUUID
	if err := row.Scan(&c.ID, &c.Name, &parent); err != nil {
		return nil, err
	}
	if parent.Valid {
		id := parent.UUID
		c.ParentID = &id
	}
	return &c, nil
}

func parentArg(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}
