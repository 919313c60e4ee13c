package main

import (
	"errors"
	"net/http"
	"strings"

	"qazbazaar/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (app *application) adminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := app.users.All(r.Context())
	if err != nil {
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (app *application) adminOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := app.orders.All(r.Context(), intParam(r, "limit", 100, 1, 500))
	if err != nil {
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (app *application) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		app.badRequest(w, err.Error())
		return
	}
	status := strings.ToLower(strings.TrimSpace(in.Status))
	if !models.ValidOrderStatus(status) {
		app.badRequest(w, "unknown order status")
		return
	}

	order, err := app.orders.UpdateStatus(r.Context(), r.URL.Query().Get(":number"), status)
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

func (app *application) adminCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string     `json:"name"`
		ParentID *uuid.UUID `json:"parentId"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		app.badRequest(w, err.Error())
		return
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		app.badRequest(w, "name is required")
		return
	}

	cat, err := app.categories.Insert(r.Context(), name, in.ParentID)
	if err != nil {
		if errors.Is(err, models.ErrUnknownParent) {
			app.badRequest(w, "parent category does not exist")
			return
		}
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (app *application) adminSetCategoryParent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		app.notFound(w)
		return
	}
	var in struct {
		ParentID *uuid.UUID `json:"parentId"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		app.badRequest(w, err.Error())
		return
	}

	cat, err := app.categories.SetParent(r.Context(), id, in.ParentID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNoRecord):
			app.notFound(w)
		case errors.Is(err, models.ErrCategoryCycle):
			writeError(w, http.StatusConflict, "category cannot be moved beneath itself")
		case errors.Is(err, models.ErrUnknownParent):
			app.badRequest(w, "parent category does not exist")
		default:
			app.serverError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

type productInput struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Price       decimal.Decimal       `json:"price"`
	CategoryID  uuid.UUID             `json:"categoryId"`
	Brand       *string               `json:"brand"`
	Color       *string               `json:"color"`
	Material    *string               `json:"material"`
	Stock       int                   `json:"stock"`
	ShippingFee decimal.Decimal       `json:"shippingFee"`
	IsFeatured  bool                  `json:"isFeatured"`
	Inactive    bool                  `json:"inactive"`
	Images      []models.ProductImage `json:"images"`
	Sizes       []models.ProductSize  `json:"sizes"`
}

func (in productInput) validate() string {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return "name is required"
	case in.CategoryID == uuid.Nil:
		return "categoryId is required"
	case in.Price.IsNegative():
		return "price must not be negative"
	case in.ShippingFee.IsNegative():
		return "shippingFee must not be negative"
	case in.Stock < 0:
		return "stock must not be negative"
	}
	for _, s := range in.Sizes {
		if strings.TrimSpace(s.Size) == "" || s.Stock < 0 {
			return "each size needs a label and a non-negative stock"
		}
	}
	for _, img := range in.Images {
		if strings.TrimSpace(img.URL) == "" {
			return "each image needs a url"
		}
	}
	return ""
}

func (app *application) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if err := decodeJSON(w, r, &in); err != nil {
		app.badRequest(w, err.Error())
		return
	}
	if msg := in.validate(); msg != "" {
		app.badRequest(w, msg)
		return
	}

	id, err := app.products.Insert(r.Context(), &models.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		CategoryID:  in.CategoryID,
		Brand:       blankToNil(in.Brand),
		Color:       blankToNil(in.Color),
		Material:    blankToNil(in.Material),
		Stock:       in.Stock,
		ShippingFee: in.ShippingFee,
		IsFeatured:  in.IsFeatured,
		IsActive:    !in.Inactive,
		Images:      in.Images,
		Sizes:       in.Sizes,
	})
	if err != nil {
		app.serverError(w, err)
		return
	}
	w.Header().Set("Location", "/api/products/"+id.String())
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (app *application) adminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := app.orders.Stats(r.Context())
	if err != nil {
		app.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
