package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/linemk/storefront/internal/app"
	"github.com/linemk/storefront/internal/app/handlers"
	"github.com/linemk/storefront/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront/internal/lib/logger/handlers/urllog"
)

// newRouter собирает маршруты API; секрет нужен обоим JWT-middleware
func newRouter(log *slog.Logger, svcs *app.Services, jwtSecret, frontendURL string) chi.Router {
	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// публичные эндпоинты
	router.Post("/api/user/register", handlers.RegisterHandler(log, svcs.Auth))
	router.Post("/api/user/login", handlers.AuthHandler(log, svcs.Auth))
	router.Post("/api/user/admin", handlers.AdminAuthHandler(log, svcs.Auth))
	router.Get("/api/product/list", handlers.ProductListHandler(log, svcs.Product))
	// вебхук подписан Stripe, bearer-токена у него нет
	router.Post("/api/order/stripe/webhook", handlers.StripeWebhookHandler(log, svcs.Orders))

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware(jwtSecret))

		r.Post("/api/user/profile", handlers.ProfileHandler(log, svcs.Users))

		r.Post("/api/cart/add", handlers.CartAddHandler(log, svcs.Cart))
		r.Post("/api/cart/update", handlers.CartUpdateHandler(log, svcs.Cart))
		r.Post("/api/cart/get", handlers.CartGetHandler(log, svcs.Cart))

		r.Post("/api/order/place", handlers.PlaceOrderHandler(log, svcs.Orders))
		r.Post("/api/order/stripe", handlers.StripeCheckoutHandler(log, svcs.Orders, frontendURL))
		r.Post("/api/order/verifyStripe", handlers.VerifyStripeHandler(log, svcs.Orders))
		r.Post("/api/order/razorpay", handlers.RazorpayOrderHandler(log, svcs.Orders))
		r.Post("/api/order/verifyRazorpay", handlers.VerifyRazorpayHandler(log, svcs.Orders))
		r.Post("/api/order/userorders", handlers.UserOrdersHandler(log, svcs.Orders))
	})

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewAdminMiddleware(jwtSecret))

		r.Post("/api/order/list", handlers.AllOrdersHandler(log, svcs.Orders))
		r.Post("/api/order/status", handlers.UpdateStatusHandler(log, svcs.Orders))
		r.Post("/api/order/delete", handlers.DeleteOrderHandler(log, svcs.Orders))
	})

	return router
}
