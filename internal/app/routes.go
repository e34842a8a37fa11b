package app

import (
	"veggiemarket/internal/handlers"
	"veggiemarket/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func (a *App) routes(validate *validator.Validate) {
	app := a.Fiber

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestContext())
	app.Use(middleware.DeviceID(validate))
	app.Use(middleware.RequestLogger())

	// --- Health Check Endpoint ---
	app.Get("/health", a.health)

	// --- Handlers ---
	productHandler := handlers.NewProductHandler(a.Products, validate)
	cartHandler := handlers.NewCartHandler(a.Sessions, a.Products, a.Orders)
	checkoutHandler := handlers.NewCheckoutHandler(a.Sessions, a.Orders)
	orderHandler := handlers.NewOrderHandler(a.Sessions, a.Orders)
	authHandler := handlers.NewAuthHandler(a.Sessions, a.Auth, validate)

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1, a.Limiter.Handler())
	productHandler.RegisterRoutes(apiV1)
	cartHandler.RegisterRoutes(apiV1)
	checkoutHandler.RegisterRoutes(apiV1)
	orderHandler.RegisterRoutes(apiV1)

	// Admin routes (require JWT authentication and the admin claim)
	admin := apiV1.Group("/admin", middleware.AuthRequired(a.Auth), middleware.AdminRequired())
	productHandler.RegisterAdminRoutes(admin)
	orderHandler.RegisterAdminRoutes(admin)
	authHandler.RegisterAdminRoutes(admin)
}
