package models

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatesCycle(t *testing.T) {
	root, shoes, sneakers, hats := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	parents := map[uuid.UUID]uuid.UUID{
		shoes:    root,
		sneakers: shoes,
	}

	assert.True(t, CreatesCycle(parents, shoes, shoes), "self parent")
	assert.True(t, CreatesCycle(parents, root, sneakers), "beneath a descendant")
	assert.True(t, CreatesCycle(parents, shoes, sneakers), "beneath a child")
	assert.False(t, CreatesCycle(parents, sneakers, root), "beneath an ancestor")
	assert.False(t, CreatesCycle(parents, hats, sneakers), "unrelated subtree")

	loopA, loopB := uuid.New(), uuid.New()
	parents[loopA] = loopB
	parents[loopB] = loopA
	assert.False(t, CreatesCycle(parents, hats, loopA), "existing loop elsewhere")
}

func TestInsertCategoryUnknownParent(t *testing.T) {
	db, mock := newMock(t)
	parent := uuid.New()
	mock.ExpectExec(`INSERT INTO categories \(id, name, parent_id\)`).
		WithArgs(sqlmock.AnyArg(), "Sneakers", parent).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "categories_parent_id_fkey"})

	m := &CategoryModel{DB: db}
	_, err := m.Insert(context.Background(), "Sneakers", &parent)
	assert.ErrorIs(t, err, ErrUnknownParent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetParent(t *testing.T) {
	root, shoes := uuid.New(), uuid.New()
	tree := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "parent_id"}).
			AddRow(root.String(), nil).
			AddRow(shoes.String(), root.String())
	}

	t.Run("unknown parent", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`LOCK TABLE categories`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, parent_id FROM categories`).WillReturnRows(tree())
		mock.ExpectRollback()

		m := &CategoryModel{DB: db}
		missing := uuid.New()
		_, err := m.SetParent(context.Background(), shoes, &missing)
		assert.ErrorIs(t, err, ErrUnknownParent)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cycle", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`LOCK TABLE categories`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, parent_id FROM categories`).WillReturnRows(tree())
		mock.ExpectRollback()

		m := &CategoryModel{DB: db}
		_, err := m.SetParent(context.Background(), root, &shoes)
		assert.ErrorIs(t, err, ErrCategoryCycle)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("move to root", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`LOCK TABLE categories`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, parent_id FROM categories`).WillReturnRows(tree())
		mock.ExpectQuery(`UPDATE categories SET parent_id = \$2 WHERE id = \$1`).
			WithArgs(shoes, nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "parent_id"}).AddRow(shoes.String(), "Shoes", nil))
		mock.ExpectCommit()

		m := &CategoryModel{DB: db}
		c, err := m.SetParent(context.Background(), shoes, nil)
		require.NoError(t, err)
		assert.Equal(t, "Shoes", c.Name)
		assert.Nil(t, c.ParentID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
