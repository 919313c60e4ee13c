package main

import (
	"context"

	"qazbazaar/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type productStore interface {
	Filters(ctx context.Context) (models.Filters, error)
	Related(ctx context.Context, productID, categoryID uuid.UUID, limit int) ([]*models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
	List(ctx context.Context, categoryID *uuid.UUID, search string, limit int) ([]*models.Product, error)
	ShippingFees(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	Insert(ctx context.Context, p *models.Product) (uuid.UUID, error)
}

type categoryStore interface {
	Insert(ctx context.Context, name string, parentID *uuid.UUID) (*models.Category, error)
	All(ctx context.Context) ([]*models.Category, error)
	SetParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) (*models.Category, error)
}

type orderStore interface {
	PlaceFromCart(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	ForUser(ctx context.Context, userID uuid.UUID) ([]*models.Order, error)
	All(ctx context.Context, limit int) ([]*models.Order, error)
	GetByNumber(ctx context.Context, number string, owner uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, number, status string) (*models.Order, error)
	RecordPayment(ctx context.Context, number string, userID uuid.UUID, method string) (*models.Payment, error)
	Stats(ctx context.Context) (models.Stats, error)
}

type addressStore interface {
	ForUser(ctx context.Context, userID uuid.UUID) ([]*models.Address, error)
	Insert(ctx context.Context, a *models.Address) (*models.Address, error)
	SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type wishlistStore interface {
	Exists(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	Add(ctx context.Context, userID, productID uuid.UUID) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	ProductIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type cartStore interface {
	Items(ctx context.Context, userID uuid.UUID) ([]*models.CartItem, error)
	Add(ctx context.Context, userID, productID uuid.UUID, size string, quantity int) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
}

type reviewStore interface {
	Insert(ctx context.Context, r *models.Review) (*models.Review, error)
	ForProduct(ctx context.Context, productID uuid.UUID) ([]*models.Review, error)
}

type userStore interface {
	Insert(ctx context.Context, email, password, role string) (uuid.UUID, error)
	Authenticate(ctx context.Context, email, password string) (models.User, error)
	All(ctx context.Context) ([]*models.User, error)
}

type viewStore interface {
	Record(ctx context.Context, ev models.ViewEvent) error
	Latest(ctx context.Context, userID uuid.UUID) ([]models.ViewEvent, error)
}
