package main

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"qazbazaar/internal/models"

	"github.com/google/uuid"
)

// --- AUTH HANDLERS ---

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (app *application) signupUser(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		app.badRequest(w, err.Error())
		return
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		app.badRequest(w, "a valid email is required")
		return
	}
	if len(in.Password) < 8 {
		app.badRequest(w, "password must be at least 8 characters")
		return
	}

	id, err := app.users.Insert(r.Context(), in.Email, in.Password, models.RoleCustomer)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "email address is already in use")
			return
		}
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (app *application) loginUser(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		app.badRequest(w, err.Error())
		return
	}

	user, err := app.users.Authenticate(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			app.clientError(w, http.StatusUnauthorized)
			return
		}
		app.serverError(w, err)
		return
	}

	if err := app.session.RenewToken(r.Context()); err != nil {
		app.serverError(w, err)
		return
	}
	app.session.Put(r.Context(), sessionUserID, user.ID.String())
	app.session.Put(r.Context(), sessionRole, user.Role)

	writeJSON(w, http.StatusOK, user)
}

func (app *application) logoutUser(w http.ResponseWriter, r *http.Request) {
	if err := app.session.RenewToken(r.Context()); err != nil {
		app.serverError(w, err)
		return
	}
	app.session.Remove(r.Context(), sessionUserID)
	app.session.Remove(r.Context(), sessionRole)
	w.WriteHeader(http.StatusNoContent)
}

// --- CATALOG HANDLERS ---

func (app *application) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, check := range app.health {
		if err := check(ctx); err != nil {
			app.errorLog.Printf("health check %s: %v", name, err)
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "up"
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"healthy": healthy, "checks": status})
}

func (app *application) productFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := app.products.Filters(r.Context())
	if err != nil {
		app.serverError(w, err)
		return
	}
	cacheControl(w, 15*time.Minute, 30*time.Minute)
	writeJSON(w, http.StatusOK, filters)
}

func (app *application) relatedProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err := uuid.Parse(q.Get("productId"))
	if err != nil {
		writeJSON(w, http.StatusOK, []*models.Product{})
		return
	}
	categoryID, err := uuid.Parse(q.Get("categoryId"))
	if err != nil {
		writeJSON(w, http.StatusOK, []*models.Product{})
		return
	}
	limit := intParam(r, "limit", 4, 1, 24)

	products, err := app.products.Related(r.Context(), productID, categoryID, limit)
	if err != nil {
		app.serverError(w, err)
		return
	}
	cacheControl(w, 5*time.Minute, 10*time.Minute)
	writeJSON(w, http.StatusOK, products)
}

func (app *application) shippingFees(w http.ResponseWriter, r *http.Request) {
	ids := parseIDs(r.URL.Query().Get("ids"), 100)
	fees, err := app.products.ShippingFees(r.Context(), ids)
	if err != nil {
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shippingFees": fees})
}

func (app *application) showProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		app.notFound(w)
		return
	}
	p, err := app.products.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			app.notFound(w)
			return
		}
		app.serverError(w, err)
		return
	}
	if uid, ok := app.authenticatedUserID(r); ok {
		app.trackView(uid, p.ID)
	}
	writeJSON(w, http.StatusOK, p)
}

func (app *application) listProducts(w http.ResponseWriter, r *http.Request) {
	var categoryID *uuid.UUID
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			app.badRequest(w, "invalid category id")
			return
		}
		categoryID = &id
	}
	search := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := intParam(r, "limit", 24, 1, 100)

	products, err := app.products.List(r.Context(), categoryID, search, limit)
	if err != nil {
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (app *application) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := app.categories.All(r.Context())
	if err != nil {
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (app *application) productReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		app.notFound(w)
		return
	}
	reviews, err := app.reviews.ForProduct(r.Context(), id)
	if err != nil {
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (app *application) addReview(w http.ResponseWriter, r *http.Request) {
	uid, _ := app.authenticatedUserID(r)
	pid, ok := pathID(r, "id")
	if !ok {
		app.notFound(w)
		return
	}

	var in struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		app.badRequest(w, err.Error())
		return
	}
	if in.Rating < 1 || in.Rating > 5 {
		app.badRequest(w, "rating must be between 1 and 5")
		return
	}

	if _, err := app.products.Get(r.Context(), pid); err != nil {
		if errors.Is(err, models.ErrNoRecord) {
			app.notFound(w)
			return
		}
		app.serverError(w, err)
		return
	}

	review, err := app.reviews.Insert(r.Context(), &models.Review{
		ProductID: pid,
		UserID:    uid,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
	})
	if err != nil {
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}
