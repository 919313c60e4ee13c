package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"qazbazaar/internal/models"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeProducts struct {
	filters models.Filters
	related []*models.Product
	byID    map[uuid.UUID]*models.Product
	fees    map[uuid.UUID]decimal.Decimal
	err     error

	relatedCalls int
	relatedLimit int
	feeIDs       []uuid.UUID
}

func (f *fakeProducts) Filters(ctx context.Context) (models.Filters, error) {
	return f.filters, f.err
}

func (f *fakeProducts) Related(ctx context.Context, productID, categoryID uuid.UUID, limit int) ([]*models.Product, error) {
	f.relatedCalls++
	f.relatedLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if f.related == nil {
		return []*models.Product{}, nil
	}
	return f.related, nil
}

func (f *fakeProducts) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byID[id]
	if !ok || !p.IsActive {
		return nil, models.ErrNoRecord
	}
	return p, nil
}

func (f *fakeProducts) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[uuid.UUID]*models.Product{}
	for _, id := range ids {
		if p, ok := f.byID[id]; ok && p.IsActive {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeProducts) List(ctx context.Context, categoryID *uuid.UUID, search string, limit int) ([]*models.Product, error) {
	out := []*models.Product{}
	for _, p := range f.byID {
		out = append(out, p)
	}
	return out, f.err
}

func (f *fakeProducts) ShippingFees(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	f.feeIDs = ids
	out := map[uuid.UUID]decimal.Decimal{}
	for _, id := range ids {
		if fee, ok := f.fees[id]; ok {
			out[id] = fee
		}
	}
	return out, f.err
}

func (f *fakeProducts) Insert(ctx context.Context, p *models.Product) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	p.ID = uuid.New()
	if f.byID == nil {
		f.byID = map[uuid.UUID]*models.Product{}
	}
	f.byID[p.ID] = p
	return p.ID, nil
}

type fakeCategories struct {
	err error
}

func (f *fakeCategories) Insert(ctx context.Context, name string, parentID *uuid.UUID) (*models.Category, error) {
	return &models.Category{ID: uuid.New(), Name: name, ParentID: parentID}, f.err
}

func (f *fakeCategories) All(ctx context.Context) ([]*models.Category, error) {
	return []*models.Category{}, f.err
}

func (f *fakeCategories) SetParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) (*models.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Category{ID: id, Name: "Shoes", ParentID: parentID}, nil
}

type fakeOrders struct {
	placed *models.Order
	err    error
}

func (f *fakeOrders) PlaceFromCart(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.placed, nil
}

func (f *fakeOrders) ForUser(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	return []*models.Order{}, f.err
}

func (f *fakeOrders) All(ctx context.Context, limit int) ([]*models.Order, error) {
	return []*models.Order{}, f.err
}

func (f *fakeOrders) GetByNumber(ctx context.Context, number string, owner uuid.UUID) (*models.Order, error) {
	if f.placed == nil || f.placed.OrderNumber != number || f.placed.UserID != owner {
		return nil, models.ErrNoRecord
	}
	return f.placed, nil
}

func (f *fakeOrders) UpdateStatus(ctx context.Context, number, status string) (*models.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Order{OrderNumber: number, Status: status}, nil
}

func (f *fakeOrders) RecordPayment(ctx context.Context, number string, userID uuid.UUID, method string) (*models.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Payment{ID: uuid.New(), Method: method, Status: "succeeded"}, nil
}

func (f *fakeOrders) Stats(ctx context.Context) (models.Stats, error) {
	return models.Stats{Revenue: decimal.NewFromInt(120), OrderCount: 3}, f.err
}

type fakeAddresses struct {
	byID map[uuid.UUID]*models.Address
	err  error
}

func (f *fakeAddresses) ForUser(ctx context.Context, userID uuid.UUID) ([]*models.Address, error) {
	out := []*models.Address{}
	for _, a := range f.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, f.err
}

func (f *fakeAddresses) Insert(ctx context.Context, a *models.Address) (*models.Address, error) {
	a.ID = uuid.New()
	return a, f.err
}

func (f *fakeAddresses) SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.byID[addressID]
	if !ok || a.UserID != userID {
		return nil, models.ErrNoRecord
	}
	for _, other := range f.byID {
		if other.UserID == userID {
			other.IsDefault = other.ID == addressID
		}
	}
	return a, nil
}

type fakeWishlist struct {
	items map[uuid.UUID]bool
	err   error
}

func (f *fakeWishlist) Exists(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	return f.items[productID], f.err
}

func (f *fakeWishlist) Add(ctx context.Context, userID, productID uuid.UUID) error {
	if f.items == nil {
		f.items = map[uuid.UUID]bool{}
	}
	f.items[productID] = true
	return f.err
}

func (f *fakeWishlist) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	if !f.items[productID] {
		return models.ErrNoRecord
	}
	delete(f.items, productID)
	return f.err
}

func (f *fakeWishlist) ProductIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	out := []uuid.UUID{}
	for id := range f.items {
		out = append(out, id)
	}
	return out, f.err
}

type fakeCarts struct {
	items []*models.CartItem
	err   error
}

func (f *fakeCarts) Items(ctx context.Context, userID uuid.UUID) ([]*models.CartItem, error) {
	if f.items == nil {
		return []*models.CartItem{}, f.err
	}
	return f.items, f.err
}

func (f *fakeCarts) Add(ctx context.Context, userID, productID uuid.UUID, size string, quantity int) error {
	f.items = append(f.items, &models.CartItem{ProductID: productID, Size: size, Quantity: quantity})
	return f.err
}

func (f *fakeCarts) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	return models.ErrNoRecord
}

type fakeReviews struct{}

func (f *fakeReviews) Insert(ctx context.Context, r *models.Review) (*models.Review, error) {
	r.ID = uuid.New()
	return r, nil
}

func (f *fakeReviews) ForProduct(ctx context.Context, productID uuid.UUID) ([]*models.Review, error) {
	return []*models.Review{}, nil
}

const testPassword = "correct-horse"

type fakeUsers struct {
	user  models.User
	taken map[string]bool
}

func (f *fakeUsers) Insert(ctx context.Context, email, password, role string) (uuid.UUID, error) {
	if f.taken[email] {
		return uuid.Nil, models.ErrDuplicateEmail
	}
	return uuid.New(), nil
}

func (f *fakeUsers) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	if email != f.user.Email || password != testPassword {
		return models.User{}, models.ErrInvalidCredentials
	}
	return f.user, nil
}

func (f *fakeUsers) All(ctx context.Context) ([]*models.User, error) {
	return []*models.User{&f.user}, nil
}

type fakeViews struct {
	events []models.ViewEvent
	err    error
}

func (f *fakeViews) Record(ctx context.Context, ev models.ViewEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeViews) Latest(ctx context.Context, userID uuid.UUID) ([]models.ViewEvent, error) {
	return f.events, f.err
}

type testApp struct {
	*application
	handler    http.Handler
	products   *fakeProducts
	categories *fakeCategories
	orders     *fakeOrders
	addresses  *fakeAddresses
	wishlist   *fakeWishlist
	carts      *fakeCarts
	users      *fakeUsers
	views      *fakeViews
}

func newTestApplication(t *testing.T) *testApp {
	t.Helper()
	ta := &testApp{
		products:   &fakeProducts{byID: map[uuid.UUID]*models.Product{}},
		categories: &fakeCategories{},
		orders:     &fakeOrders{},
		addresses:  &fakeAddresses{byID: map[uuid.UUID]*models.Address{}},
		wishlist:   &fakeWishlist{},
		carts:      &fakeCarts{},
		users:      &fakeUsers{},
		views:      &fakeViews{},
	}
	ta.application = &application{
		errorLog:   log.New(io.Discard, "", 0),
		infoLog:    log.New(io.Discard, "", 0),
		session:    scs.New(),
		products:   ta.products,
		categories: ta.categories,
		orders:     ta.orders,
		addresses:  ta.addresses,
		wishlist:   ta.wishlist,
		carts:      ta.carts,
		reviews:    &fakeReviews{},
		users:      ta.users,
		views:      ta.views,
		health:     map[string]func(context.Context) error{},
		viewQueue:  make(chan models.ViewEvent, 8),
	}
	ta.handler = ta.application.routes()
	return ta
}

func (ta *testApp) do(t *testing.T, method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	return rr
}

// login signs in a fresh user with role and returns its id and session
// cookie.
func (ta *testApp) login(t *testing.T, role string) (uuid.UUID, *http.Cookie) {
	t.Helper()
	ta.users.user = models.User{ID: uuid.New(), Email: role + "@qazbazaar.kz", Role: role}

	body := `{"email":"` + ta.users.user.Email + `","password":"` + testPassword + `"}`
	rr := ta.do(t, http.MethodPost, "/user/login", body, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	for _, c := range rr.Result().Cookies() {
		if c.Name == ta.session.Cookie.Name {
			return ta.users.user.ID, c
		}
	}
	t.Fatal("login did not set a session cookie")
	return uuid.Nil, nil
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}
