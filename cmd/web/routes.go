package main

import (
	"net/http"

	"qazbazaar/internal/models"

	"github.com/bmizerany/pat"
)

func (app *application) routes() http.Handler {
	mux := pat.New()
	auth := func(h http.HandlerFunc) http.Handler { return app.requireAuthentication(h) }

	mux.Get("/healthz", http.HandlerFunc(app.healthz))

	mux.Post("/user/signup", http.HandlerFunc(app.signupUser))
	mux.Post("/user/login", http.HandlerFunc(app.loginUser))
	mux.Post("/user/logout", auth(app.logoutUser))

	// Fixed paths go before /api/products/:id so they are not taken as ids.
	mux.Get("/api/products/filters", http.HandlerFunc(app.productFilters))
	mux.Get("/api/products/related", http.HandlerFunc(app.relatedProducts))
	mux.Get("/api/products/shipping", http.HandlerFunc(app.shippingFees))
	mux.Get("/api/products/:id/reviews", http.HandlerFunc(app.productReviews))
	mux.Post("/api/products/:id/reviews", auth(app.addReview))
	mux.Get("/api/products/:id", http.HandlerFunc(app.showProduct))
	mux.Get("/api/products", http.HandlerFunc(app.listProducts))
	mux.Get("/api/categories", http.HandlerFunc(app.listCategories))

	mux.Get("/api/recently-viewed", http.HandlerFunc(app.recentlyViewed))

	mux.Get("/api/wishlist/check", http.HandlerFunc(app.wishlistCheck))
	mux.Get("/api/wishlist", auth(app.wishlistItems))
	mux.Post("/api/wishlist", auth(app.addToWishlist))
	mux.Del("/api/wishlist/:productId", auth(app.removeFromWishlist))

	mux.Get("/api/addresses", auth(app.listAddresses))
	mux.Post("/api/addresses", auth(app.createAddress))
	mux.Add("PATCH", "/api/addresses/:id/default", auth(app.setDefaultAddress))

	mux.Get("/api/cart", auth(app.cartItems))
	mux.Post("/api/cart", auth(app.addToCart))
	mux.Del("/api/cart/:productId", auth(app.removeFromCart))

	mux.Post("/api/orders", auth(app.placeOrder))
	mux.Get("/api/orders", auth(app.listOrders))
	mux.Post("/api/orders/:number/payments", auth(app.payOrder))
	mux.Get("/api/orders/:number", auth(app.showOrder))

	mux.Get("/admin/users", app.requireRole(models.RoleAdmin, app.adminUsers))
	mux.Get("/admin/orders", app.requireRole(models.RoleAdmin, app.adminOrders))
	mux.Add("PATCH", "/admin/orders/:number/status", app.requireRole(models.RoleAdmin, app.adminUpdateOrderStatus))
	mux.Post("/admin/categories", app.requireRole(models.RoleAdmin, app.adminCreateCategory))
	mux.Add("PATCH", "/admin/categories/:id/parent", app.requireRole(models.RoleAdmin, app.adminSetCategoryParent))
	mux.Post("/admin/products", app.requireRole(models.RoleAdmin, app.adminCreateProduct))
	mux.Get("/admin/stats", app.requireRole(models.RoleAdmin, app.adminStats))

	return app.recoverPanic(app.logRequest(secureHeaders(app.session.LoadAndSave(mux))))
}
