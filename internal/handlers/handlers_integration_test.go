package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"veggiemarket/internal/app"
	"veggiemarket/internal/catalog"
	"veggiemarket/internal/config"
	"veggiemarket/internal/handlers"
	"veggiemarket/internal/middleware"
	"veggiemarket/internal/models"
	"veggiemarket/internal/repositories"
	"veggiemarket/internal/services"
	"veggiemarket/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

const (
	adminEmail    = "admin@veggiemarket.com"
	adminPassword = "admin123"
	userEmail     = "user@veggiemarket.com"
	userPassword  = "user123"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Port: ":0", Env: "test"},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
			Seed:   true,
		},
		Storage: config.StorageConfig{Driver: "memory"},
		Auth: config.AuthConfig{
			Mode:      "database",
			JWTSecret: "test_jwt_secret",
			TokenTTL:  time.Hour,
		},
		Checkout: config.CheckoutConfig{
			TaxRate:               decimal.RequireFromString("0.18"),
			FreeShippingThreshold: decimal.NewFromInt(1000),
			FlatShippingFee:       decimal.NewFromInt(50),
			Currency:              "INR",
		},
		Catalog:   config.CatalogConfig{Locale: "en"},
		RateLimit: config.RateLimitConfig{AuthPerSecond: 100, AuthBurst: 100},
	}
}

// setupApp wires the full storefront over an in-memory SQLite database.
func setupApp(t *testing.T) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// client sends requests as one device, optionally with a bearer token.
type client struct {
	t      *testing.T
	app    *app.App
	device string
	token  string
}

func newClient(t *testing.T, a *app.App) *client {
	return &client{t: t, app: a, device: "device" + uuid.NewString()[:8]}
}

func (c *client) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if c.device != "" {
		req.Header.Set(middleware.HeaderDeviceID, c.device)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.app.Fiber.Test(req, -1)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (c *client) login(email, password string) {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](c.t, resp)
	c.token, _ = body["token"].(string)
	require.NotEmpty(c.t, c.token)
}

func seedID(t *testing.T, name string) string {
	t.Helper()
	for _, p := range repositories.DemoProducts() {
		if p.Name == name {
			return p.ID
		}
	}
	t.Fatalf("no demo product %q", name)
	return ""
}

func codForm() map[string]any {
	return map[string]any{
		"email": userEmail,
		"shipping_address": map[string]string{
			"full_name": "Regular User",
			"address":   "12 MG Road",
			"city":      "Pune",
			"state":     "Maharashtra",
			"zip_code":  "411001",
			"phone":     "9876543210",
		},
		"payment_method": "cash_on_delivery",
	}
}

func TestHealthCheck(t *testing.T) {
	a := setupApp(t)
	resp := newClient(t, a).do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.HeaderDeviceID))

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["catalog_loaded"])
	assert.Equal(t, "local", body["broker"])
}

func TestBrowseCatalog(t *testing.T) {
	a := setupApp(t)
	c := newClient(t, a)

	resp := c.do(http.MethodGet, "/api/v1/products?category=fruits&sort=price-desc", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listing := decode[services.Listing](t, resp)
	assert.True(t, listing.Loaded)
	require.Len(t, listing.Products, 2)
	assert.Equal(t, "Alphonso Mango", listing.Products[0].Name)
	assert.Equal(t, "Banana", listing.Products[1].Name)
	assert.Equal(t, "category=fruits&sort=price-desc", listing.Query)

	resp = c.do(http.MethodGet, "/api/v1/products?organic=true&max_price=100&sort=name-asc", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listing = decode[services.Listing](t, resp)
	names := make([]string, 0, len(listing.Products))
	for _, p := range listing.Products {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Carrot", "Mint", "Spinach"}, names)

	resp = c.do(http.MethodGet, "/api/v1/products?q=MANGO", nil)
	listing = decode[services.Listing](t, resp)
	require.Len(t, listing.Products, 1)
	assert.Equal(t, "Alphonso Mango", listing.Products[0].Name)

	resp = c.do(http.MethodGet, "/api/v1/products?sort=cheapest", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = c.do(http.MethodGet, "/api/v1/products/"+seedID(t, "Carrot"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Carrot", decode[models.Product](t, resp).Name)

	resp = c.do(http.MethodGet, "/api/v1/products/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCartFlow(t *testing.T) {
	a := setupApp(t)
	c := newClient(t, a)
	tomato := seedID(t, "Tomato")

	resp := c.do(http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[handlers.CartView](t, resp).Items)

	resp = c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": tomato, "quantity": 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view := decode[handlers.CartView](t, resp)
	assert.Equal(t, 3, view.TotalItems)
	assert.True(t, decimal.NewFromInt(120).Equal(view.Subtotal))
	assert.True(t, decimal.NewFromInt(50).Equal(view.Shipping))

	// Adding the same product again merges the quantity; the default is 1.
	resp = c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": tomato})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view = decode[handlers.CartView](t, resp)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 4, view.Items[0].Quantity)

	resp = c.do(http.MethodPut, "/api/v1/cart/items/"+tomato, map[string]any{"quantity": 7})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 7, decode[handlers.CartView](t, resp).TotalItems)

	resp = c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": tomato, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Another device has its own cart.
	other := newClient(t, a)
	resp = other.do(http.MethodGet, "/api/v1/cart", nil)
	assert.Equal(t, 0, decode[handlers.CartView](t, resp).TotalItems)

	resp = c.do(http.MethodPut, "/api/v1/cart/items/"+tomato, map[string]any{"quantity": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[handlers.CartView](t, resp).Items)

	c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": tomato})
	resp = c.do(http.MethodDelete, "/api/v1/cart/items/"+tomato, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[handlers.CartView](t, resp).Items)

	c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": tomato})
	resp = c.do(http.MethodDelete, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, decode[handlers.CartView](t, resp).TotalItems)
}

func TestAuthFlow(t *testing.T) {
	a := setupApp(t)
	c := newClient(t, a)

	resp := c.do(http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": userEmail, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[map[string]any](t, resp)["errors"], "email")

	c.login(userEmail, userPassword)
	claims, err := a.Auth.ValidateToken(c.token)
	require.NoError(t, err)
	assert.Equal(t, userEmail, claims.Email)
	assert.False(t, claims.Admin)

	resp = c.do(http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[struct {
		User models.Identity `json:"user"`
	}](t, resp)
	assert.Equal(t, userEmail, me.User.Email)

	resp = c.do(http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = c.do(http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	newcomer := newClient(t, a)
	register := map[string]string{"email": "Asha@Example.com", "password": "secret99", "name": "Asha"}
	resp = newcomer.do(http.MethodPost, "/api/v1/auth/register", register)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.NotEmpty(t, body["token"])

	resp = newClient(t, a).do(http.MethodPost, "/api/v1/auth/register", register)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = newClient(t, a).do(http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "a@b.co", "password": "123", "name": "A"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGuestCartMovesAsideOnLogin(t *testing.T) {
	a := setupApp(t)
	c := newClient(t, a)
	carrot := seedID(t, "Carrot")

	c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": carrot, "quantity": 2})
	c.login(userEmail, userPassword)

	resp := c.do(http.MethodGet, "/api/v1/cart", nil)
	assert.Equal(t, 0, decode[handlers.CartView](t, resp).TotalItems)

	c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": carrot, "quantity": 5})
	c.do(http.MethodPost, "/api/v1/auth/logout", nil)

	resp = c.do(http.MethodGet, "/api/v1/cart", nil)
	assert.Equal(t, 0, decode[handlers.CartView](t, resp).TotalItems)
}

func TestCheckoutFlow(t *testing.T) {
	a := setupApp(t)
	c := newClient(t, a)
	tomato := seedID(t, "Tomato")
	mango := seedID(t, "Alphonso Mango")

	resp := c.do(http.MethodPost, "/api/v1/checkout", codForm())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	c.login(userEmail, userPassword)
	resp = c.do(http.MethodPost, "/api/v1/checkout", codForm())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": tomato, "quantity": 3})
	c.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": mango, "quantity": 1})

	resp = c.do(http.MethodGet, "/api/v1/checkout/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[handlers.CartView](t, resp)
	assert.True(t, decimal.NewFromInt(720).Equal(summary.Subtotal))
	assert.True(t, decimal.RequireFromString("129.6").Equal(summary.Tax))
	assert.True(t, decimal.NewFromInt(50).Equal(summary.Shipping))
	assert.True(t, decimal.RequireFromString("899.6").Equal(summary.Total))

	bad := codForm()
	bad["payment_method"] = "credit_card"
	bad["card_number"] = "1234"
	resp = c.do(http.MethodPost, "/api/v1/checkout", bad)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[map[string]any](t, resp)["errors"], "card_number")

	resp = c.do(http.MethodPost, "/api/v1/checkout", codForm())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := decode[models.Order](t, resp)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.True(t, decimal.RequireFromString("899.6").Equal(order.Total))
	assert.Len(t, order.Items, 2)

	resp = c.do(http.MethodGet, "/api/v1/cart", nil)
	assert.Empty(t, decode[handlers.CartView](t, resp).Items)

	resp = c.do(http.MethodGet, "/api/v1/products/"+tomato, nil)
	assert.Equal(t, 117, decode[models.Product](t, resp).Stock)

	resp = c.do(http.MethodGet, "/api/v1/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Order](t, resp), 1)

	resp = c.do(http.MethodGet, "/api/v1/orders/"+order.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Other customers cannot see the order.
	stranger := newClient(t, a)
	stranger.do(http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "other@example.com", "password": "secret99", "name": "Other"})
	resp = stranger.do(http.MethodGet, "/api/v1/orders/"+order.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.OrderCancelled, decode[models.Order](t, resp).Status)

	resp = c.do(http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAdminEndpoints(t *testing.T) {
	a := setupApp(t)

	guest := newClient(t, a)
	resp := guest.do(http.MethodPost, "/api/v1/admin/products", map[string]any{"name": "Okra", "price": 45})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	user := newClient(t, a)
	user.login(userEmail, userPassword)
	resp = user.do(http.MethodGet, "/api/v1/admin/orders", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := newClient(t, a)
	admin.login(adminEmail, adminPassword)

	resp = admin.do(http.MethodPost, "/api/v1/admin/products", map[string]any{"name": "O", "price": -1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = admin.do(http.MethodPost, "/api/v1/admin/products", map[string]any{
		"name": "Okra", "price": 45, "stock": 40, "category": "vegetables", "organic": true, "unit": "kg",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	okra := decode[models.Product](t, resp)
	require.NotEmpty(t, okra.ID)

	// The catalog cache picks the new product up without a reload.
	resp = guest.do(http.MethodGet, "/api/v1/products?q=okra", nil)
	listing := decode[services.Listing](t, resp)
	require.Len(t, listing.Products, 1)
	assert.Equal(t, okra.ID, listing.Products[0].ID)

	// A price change reaches carts already holding the product.
	guest.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": okra.ID, "quantity": 2})
	resp = admin.do(http.MethodPut, "/api/v1/admin/products/"+okra.ID, map[string]any{
		"name": "Okra", "price": 55, "stock": 40, "category": "vegetables", "organic": true, "unit": "kg",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = guest.do(http.MethodGet, "/api/v1/cart", nil)
	assert.True(t, decimal.NewFromInt(110).Equal(decode[handlers.CartView](t, resp).Subtotal))

	resp = admin.do(http.MethodDelete, "/api/v1/admin/products/"+okra.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = guest.do(http.MethodGet, "/api/v1/products/"+okra.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = guest.do(http.MethodGet, "/api/v1/cart", nil)
	assert.Empty(t, decode[handlers.CartView](t, resp).Items)

	// Order administration.
	user.do(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": seedID(t, "Banana")})
	resp = user.do(http.MethodPost, "/api/v1/checkout", codForm())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := decode[models.Order](t, resp)

	resp = admin.do(http.MethodGet, "/api/v1/admin/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Order](t, resp), 1)

	resp = admin.do(http.MethodPatch, "/api/v1/admin/orders/"+order.ID+"/status", map[string]string{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = admin.do(http.MethodPatch, "/api/v1/admin/orders/"+order.ID+"/status", map[string]string{"status": "shipped"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = user.do(http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = admin.do(http.MethodGet, "/api/v1/admin/users", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Profile](t, resp), 2)
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{AuthPerSecond: 0.001, AuthBurst: 2}
	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	c := newClient(t, a)
	creds := map[string]string{"email": userEmail, "password": "wrong"}
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/v1/auth/login", creds).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/v1/auth/login", creds).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, c.do(http.MethodPost, "/api/v1/auth/login", creds).StatusCode)
}

func TestRequestsWithoutDeviceID(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{AuthPerSecond: 0.001, AuthBurst: 2}
	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	// every request gets a fresh id, but the login budget is per address
	c := &client{t: t, app: a}
	creds := map[string]string{"email": userEmail, "password": "wrong"}
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/v1/auth/login", creds).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/v1/auth/login", creds).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, c.do(http.MethodPost, "/api/v1/auth/login", creds).StatusCode)

	for range 10 {
		resp := c.do(http.MethodGet, "/api/v1/cart", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(middleware.HeaderDeviceID))
	}
	assert.Equal(t, 0, a.Sessions.Len())

	// a device that keeps its id keeps its session
	kept := newClient(t, a)
	require.Equal(t, http.StatusOK, kept.do(http.MethodGet, "/api/v1/cart", nil).StatusCode)
	assert.Equal(t, 1, a.Sessions.Len())
}

// brokenProducts fails every listing, as a dropped database connection would.
type brokenProducts struct {
	repositories.ProductRepository
}

func (brokenProducts) List(context.Context, catalog.Filters) ([]models.Product, error) {
	return nil, errors.New("connection refused")
}

func TestCatalogNotLoaded(t *testing.T) {
	service := services.NewProductService(brokenProducts{}, catalog.NewCache(), catalog.NewEngine(language.English), nil)
	handler := handlers.NewProductHandler(service, validation.New())

	server := fiber.New()
	handler.RegisterRoutes(server.Group("/api/v1"))

	resp, err := server.Test(httptest.NewRequest(http.MethodGet, "/api/v1/products", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, false, body["loaded"])
}
