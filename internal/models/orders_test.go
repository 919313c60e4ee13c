package models

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cartCols = []string{"product_id", "size", "quantity", "price", "shipping_fee"}

func testNumbers(t *testing.T, entropy []byte) *OrderNumberGenerator {
	t.Helper()
	g, err := NewOrderNumberGenerator("QB")
	require.NoError(t, err)
	g.Now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.Local) }
	g.Rand = bytes.NewReader(entropy)
	return g
}

var orderNumberTaken = &pq.Error{Code: "23505", Constraint: "orders_order_number_key"}

func TestPlaceFromCart(t *testing.T) {
	db, mock := newMock(t)
	user, product := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)FROM cart_items ci.+FOR UPDATE OF p`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows(cartCols).
			AddRow(product.String(), "L", 1, "10.00", "5.00").
			AddRow(product.String(), "M", 2, "10.00", "5.00"))
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(sqlmock.AnyArg(), "QB-20240601-ABCDEF", user, OrderPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	for _, l := range []struct {
		size string
		qty  int
	}{{"L", 1}, {"M", 2}} {
		mock.ExpectExec(`UPDATE product_sizes SET stock = stock - \$3`).
			WithArgs(product, l.size, l.qty).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE products SET stock = stock - \$2`).
			WithArgs(product, l.qty).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO order_items`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(`DELETE FROM cart_items WHERE user_id = \$1`).
		WithArgs(user).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	m := &OrderModel{DB: db, Numbers: testNumbers(t, []byte{0, 1, 2, 3, 4, 5})}
	order, err := m.PlaceFromCart(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, "QB-20240601-ABCDEF", order.OrderNumber)
	assert.Equal(t, OrderPending, order.Status)
	assert.Len(t, order.Items, 2)
	// Shipping is charged once per product, not once per line.
	assert.Equal(t, "5", order.ShippingTotal.String())
	assert.Equal(t, "35", order.Total.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceFromCartRetriesTakenNumber(t *testing.T) {
	db, mock := newMock(t)
	user, product := uuid.New(), uuid.New()
	cart := func() *sqlmock.Rows {
		return sqlmock.NewRows(cartCols).AddRow(product.String(), "", 1, "12.00", "0")
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM cart_items`).WillReturnRows(cart())
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(sqlmock.AnyArg(), "QB-20240601-AAAAAA", user, OrderPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(orderNumberTaken)
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM cart_items`).WillReturnRows(cart())
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(sqlmock.AnyArg(), "QB-20240601-BBBBBB", user, OrderPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`UPDATE products SET stock`).WithArgs(product, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_items`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM cart_items`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entropy := append(bytes.Repeat([]byte{0}, 6), bytes.Repeat([]byte{1}, 6)...)
	m := &OrderModel{DB: db, Numbers: testNumbers(t, entropy)}
	order, err := m.PlaceFromCart(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "QB-20240601-BBBBBB", order.OrderNumber)
	assert.Equal(t, "12", order.Total.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceFromCartGivesUp(t *testing.T) {
	db, mock := newMock(t)
	user, product := uuid.New(), uuid.New()

	for i := 0; i < maxOrderNumberAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM cart_items`).
			WillReturnRows(sqlmock.NewRows(cartCols).AddRow(product.String(), "", 1, "12.00", "0"))
		mock.ExpectQuery(`INSERT INTO orders`).WillReturnError(orderNumberTaken)
		mock.ExpectRollback()
	}

	m := &OrderModel{DB: db, Numbers: testNumbers(t, make([]byte, 6*maxOrderNumberAttempts))}
	_, err := m.PlaceFromCart(context.Background(), user)
	assert.ErrorIs(t, err, ErrOrderNumberExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceFromCartOtherUniqueViolationIsNotRetried(t *testing.T) {
	db, mock := newMock(t)
	user, product := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM cart_items`).
		WillReturnRows(sqlmock.NewRows(cartCols).AddRow(product.String(), "", 1, "12.00", "0"))
	mock.ExpectQuery(`INSERT INTO orders`).WillReturnError(&pq.Error{Code: "23505", Constraint: "orders_pkey"})
	mock.ExpectRollback()

	m := &OrderModel{DB: db, Numbers: testNumbers(t, make([]byte, 12))}
	_, err := m.PlaceFromCart(context.Background(), user)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOrderNumberExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceFromCartEmpty(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM cart_items`).WillReturnRows(sqlmock.NewRows(cartCols))
	mock.ExpectRollback()

	m := &OrderModel{DB: db, Numbers: testNumbers(t, make([]byte, 6))}
	_, err := m.PlaceFromCart(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceFromCartInsufficientStock(t *testing.T) {
	db, mock := newMock(t)
	product := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM cart_items`).
		WillReturnRows(sqlmock.NewRows(cartCols).AddRow(product.String(), "", 3, "12.00", "0"))
	mock.ExpectQuery(`INSERT INTO orders`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`UPDATE products SET stock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	m := &OrderModel{DB: db, Numbers: testNumbers(t, make([]byte, 6))}
	_, err := m.PlaceFromCart(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}
