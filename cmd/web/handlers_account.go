package main

import (
	"errors"
	"net/http"
	"strings"

	"qazbazaar/internal/models"

	"github.com/google/uuid"
)

// recentlyViewed never fails: anonymous callers and store errors both get
// an empty list.
func (app *application) recentlyViewed(w http.ResponseWriter, r *http.Request) {
	views := []models.RecentView{}

	uid, ok := app.authenticatedUserID(r)
	if !ok {
		writeJSON(w, http.StatusOK, views)
		return
	}

	events, err := app.views.Latest(r.Context(), uid)
	if err != nil {
		app.errorLog.Printf("recently viewed for %s: %v", uid, err)
		writeJSON(w, http.StatusOK, views)
		return
	}

	ids := make([]uuid.UUID, 0, len(events))
	seen := map[uuid.UUID]bool{}
	for _, ev := range events {
		if !seen[ev.ProductID] {
			seen[ev.ProductID] = true
			ids = append(ids, ev.ProductID)
		}
	}
	products, err := app.products.GetMany(r.Context(), ids)
	if err != nil {
		app.errorLog.Printf("recently viewed products for %s: %v", uid, err)
		writeJSON(w, http.StatusOK, views)
		return
	}

	for _, ev := range events {
		p, ok := products[ev.ProductID]
		if !ok {
			continue
		}
		views = append(views, models.RecentView{ProductID: ev.ProductID, ViewedAt: ev.ViewedAt, Product: p})
	}
	writeJSON(w, http.StatusOK, views)
}

// --- WISHLIST ---

// wishlistCheck answers false rather than an error for anonymous callers,
// bad ids and store failures.
func (app *application) wishlistCheck(w http.ResponseWriter, r *http.Request) {
	respond := func(in bool) {
		writeJSON(w, http.StatusOK, map[string]bool{"inWishlist": in})
	}

	uid, ok := app.authenticatedUserID(r)
	if !ok {
		respond(false)
		return
	}
	pid, err := uuid.Parse(r.URL.Query().Get("productId"))
	if err != nil {
		respond(false)
		return
	}
	in, err := app.wishlist.Exists(r.Context(), uid, pid)
	if err != nil {
		app.errorLog.Printf("wishlist check %s/%s: %v", uid, pid, err)
		respond(false)
		return
	}
	respond(in)
}

func (app *application) wishlistItems(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	ids, err := app.wishlist.ProductIDs(r.Context(), uid)
	if err != nil {
		app.serverError(w, err)
		return
	}
	products, err := app.products.GetMany(r.Context(), ids)
	if err != nil {
		app.serverError(w, err)
		return
	}
	out := make([]*models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := products[id]; ok {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (app *application) addToWishlist(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	var in struct {
		ProductID uuid.UUID `json:"productId"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		app.badRequest(w, err.Error())
		return
	}
	if _, err := app.products.Get(r.Context(), in.ProductID); err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			app.notFound(w)
			return
		}
		app.serverError(w, err)
		return
	}
	if err := app.wishlist.Add(r.Context(), uid, in.ProductID); err != nil {
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"inWishlist": true})
}

func (app *application) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	pid, ok := pathID(r, "productId")
	if !ok {
		app.notFound(w)
		return
	}
	if err := app.wishlist.Remove(r.Context(), uid, pid); err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			app.notFound(w)
			return
		}
		app.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- ADDRESSES ---

func (app *application) listAddresses(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	addrs, err := app.addresses.ForUser(r.Context(), uid)
	if err != nil {
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addrs)
}

func (app *application) createAddress(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	var in struct {
		Recipient  string `json:"recipient"`
		Line1      string `json:"line1"`
		Line2      string `json:"line2"`
		City       string `json:"city"`
		PostalCode string `json:"postalCode"`
		Country    string `json:"country"`
		Phone      string `json:"phone"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		app.badRequest(w, err.Error())
		return
	}

	a := &models.Address{
		UserID:     uid,
		Recipient:  strings.TrimSpace(in.Recipient),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      strings.TrimSpace(in.Line2),
		City:       strings.TrimSpace(in.City),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.TrimSpace(in.Country),
		Phone:      strings.TrimSpace(in.Phone),
	}
	for field, v := range map[string]string{
		"recipient": a.Recipient, "line1": a.Line1, "city": a.City,
		"postalCode": a.PostalCode, "country": a.Country,
	} {
		if v == "" {
			app.badRequest(w, field+" is required")
			return
		}
	}

	created, err := app.addresses.Insert(r.Context(), a)
	if err != nil {
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// setDefaultAddress answers 404 both for unknown ids and for addresses of
// other users.
func (app *application) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	id, ok := pathID(r, "id")
	if !ok {
		app.notFound(w)
		return
	}
	a, err := app.addresses.SetDefault(r.Context(), uid, id)
	if err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			app.notFound(w)
			return
		}
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// --- CART ---

func (app *application) cartItems(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	items, err := app.carts.Items(r.Context(), uid)
	if err != nil {
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (app *application) addToCart(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	var in struct {
		ProductID uuid.UUID `json:"productId"`
		Size      string    `json:"size"`
		Quantity  int       `json:"quantity"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		app.badRequest(w, err.Error())
		return
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 1 || in.Quantity > 99 {
		app.badRequest(w, "quantity must be between 1 and 99")
		return
	}
	in.Size = strings.TrimSpace(in.Size)

	p, err := app.products.Get(r.Context(), in.ProductID)
	if err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			app.notFound(w)
			return
		}
		app.serverError(w, err)
		return
	}
	if !hasSize(p, in.Size) {
		app.badRequest(w, "unknown size for this product")
		return
	}

	if err := app.carts.Add(r.Context(), uid, p.ID, in.Size, in.Quantity); err != nil {
		app.serverError(w, err)
		return
	}
	app.cartItems(w, r)
}

// hasSize reports whether size is valid for p: products without size rows
// take an empty size, others must name one of their rows.
func hasSize(p *models.Product, size string) bool {
	if len(p.Sizes) == 0 {
		return size == ""
	}
	for _, s := range p.Sizes {
		if s.Size == size {
			return true
		}
	}
	return false
}

func (app *application) removeFromCart(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	pid, ok := pathID(r, "productId")
	if !ok {
		app.notFound(w)
		return
	}
	if err := app.carts.Remove(r.Context(), uid, pid); err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			app.notFound(w)
			return
		}
		app.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- ORDERS ---

func (app *application) placeOrder(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	order, err := app.orders.PlaceFromCart(r.Context(), uid)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyCart):
			app.badRequest(w, "cart is empty")
		case errors.Is(err, models.ErrInsufficientStock):
			writeError(w, http.StatusConflict, "not enough stock for one or more items")
		default:
			app.serverError(w, err)
		}
		return
	}
	app.infoLog.Printf("order %s placed by %s", order.OrderNumber, uid)
	writeJSON(w, http.StatusCreated, order)
}

func (app *application) listOrders(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	orders, err := app.orders.ForUser(r.Context(), uid)
	if err != nil {
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (app *application) showOrder(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	order, err := app.orders.GetByNumber(r.Context(), r.URL.Query().Get(":number"), uid)
	if err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			app.notFound(w)
			return
		}
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (app *application) payOrder(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	var in struct {
		Method string `json:"method"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		app.badRequest(w, err.Error())
		return
	}
	in.Method = strings.TrimSpace(in.Method)
	if in.Method == "" {
		app.badRequest(w, "method is required")
		return
	}

	payment, err := app.orders.RecordPayment(r.Context(), r.URL.Query().Get(":number"), uid, in.Method)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNoRecord):
			app.notFound(w)
		case errors.Is(err, models.ErrOrderNotPayable):
			writeError(w, http.StatusConflict, "order is not awaiting payment")
		default:
			app.serverError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}
