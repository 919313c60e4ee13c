package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNoRecord             = errors.New("models: no matching record found")
	ErrInvalidCredentials   = errors.New("models: invalid credentials")
	ErrDuplicateEmail       = errors.New("models: duplicate email")
	ErrEmptyCart            = errors.New("models: cart is empty")
	ErrInsufficientStock    = errors.New("models: insufficient stock")
	ErrCategoryCycle        = errors.New("models: category cannot be its own ancestor")
	ErrUnknownParent        = errors.New("models: parent category does not exist")
	ErrOrderNumberExhausted = errors.New("models: could not allocate a unique order number")
)

func init() {
	// Money goes over the wire as a JSON number.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

const (
	OrderPending   = "pending"
	OrderPaid      = "paid"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

// ValidOrderStatus reports whether s is one of the known order states.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderPending, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Category struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parentId,omitempty"`
}

type ProductImage struct {
	URL       string `json:"url"`
	AltText   string `json:"altText,omitempty"`
	SortOrder int    `json:"sortOrder"`
}

type ProductSize struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  uuid.UUID       `json:"categoryId"`
	Category    *Category       `json:"category,omitempty"`
	Brand       *string         `json:"brand"`
	Color       *string         `json:"color"`
	Material    *string         `json:"material"`
	Stock       int             `json:"stock"`
	ShippingFee decimal.Decimal `json:"shippingFee"`
	IsFeatured  bool            `json:"isFeatured"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
	Images      []ProductImage  `json:"images"`
	Sizes       []ProductSize   `json:"sizes"`
}

// Filters is the facet set offered to the catalog filter UI.
type Filters struct {
	Brands    []string `json:"brands"`
	Colors    []string `json:"colors"`
	Materials []string `json:"materials"`
}

type OrderItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type Payment struct {
	ID        uuid.UUID       `json:"id"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Order struct {
	ID            uuid.UUID       `json:"id"`
	OrderNumber   string          `json:"orderNumber"`
	UserID        uuid.UUID       `json:"userId"`
	Status        string          `json:"status"`
	Total         decimal.Decimal `json:"total"`
	ShippingTotal decimal.Decimal `json:"shippingTotal"`
	Items         []OrderItem     `json:"items"`
	Payments      []Payment       `json:"payments"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type CartItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
}

type Review struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	UserID    uuid.UUID `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type Address struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"userId"`
	Recipient  string    `json:"recipient"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	PostalCode string    `json:"postalCode"`
	Country    string    `json:"country"`
	Phone      string    `json:"phone,omitempty"`
	IsDefault  bool      `json:"isDefault"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ViewEvent is a single product view by a signed-in user.
type ViewEvent struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	ViewedAt  time.Time
}

// RecentView pairs a logged view with the product as it is now.
type RecentView struct {
	ProductID uuid.UUID `json:"productId"`
	ViewedAt  time.Time `json:"viewedAt"`
	Product   *Product  `json:"product"`
}

type Stats struct {
	Revenue    decimal.Decimal `json:"revenue"`
	OrderCount int64           `json:"orderCount"`
}
