package handlers

import (
	"veggiemarket/internal/cart"
	"veggiemarket/internal/checkout"
	"veggiemarket/internal/models"
	"veggiemarket/internal/services"
	"veggiemarket/internal/session"

	"github.com/gofiber/fiber/v2"
)

// CartView is the cart as returned to clients.
type CartView struct {
	Items      []models.CartItem `json:"items"`
	TotalItems int               `json:"total_items"`
	checkout.Totals
}

func cartView(e *cart.Engine, orders *services.OrderService) CartView {
	items := e.Items()
	if items == nil {
		items = []models.CartItem{}
	}
	return CartView{
		Items:      items,
		TotalItems: e.TotalItems(),
		Totals:     orders.Quote(e),
	}
}

// CartHandler handles HTTP requests for the device's active cart.
type CartHandler struct {
	sessions *session.Manager
	products *services.ProductService
	orders   *services.OrderService
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(sessions *session.Manager, products *services.ProductService, orders *services.OrderService) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		products: products,
		orders:   orders,
	}
}

// RegisterRoutes registers the cart routes.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Delete("/", h.HandleClearCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Put("/items/:productId", h.HandleSetQuantity)
	cartRoutes.Delete("/items/:productId", h.HandleRemoveItem)
}

// AddItemRequest is the body of POST /cart/items. Quantity defaults to 1.
type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

// SetQuantityRequest is the body of PUT /cart/items/:productId.
type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// HandleGetCart returns the active cart.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	g, err := gate(c, h.sessions)
	if err != nil {
		return fail(c, err, "Could not open session")
	}
	return c.JSON(cartView(g.Cart(), h.orders))
}

// HandleAddItem adds a catalog product to the cart.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if req.ProductID == "" {
		return validationFailed(c, map[string]string{"product_id": "is required"})
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	g, err := gate(c, h.sessions)
	if err != nil {
		return fail(c, err, "Could not open session")
	}
	product, err := h.products.GetProductByID(c.UserContext(), req.ProductID)
	if err != nil {
		return fail(c, err, "Could not add item")
	}
	if err := g.Cart().Add(c.UserContext(), *product, qty); err != nil {
		return fail(c, err, "Could not add item")
	}
	return c.Status(fiber.StatusCreated).JSON(cartView(g.Cart(), h.orders))
}

// HandleSetQuantity replaces an item's quantity; zero or less removes it.
func (h *CartHandler) HandleSetQuantity(c *fiber.Ctx) error {
	var req SetQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	g, err := gate(c, h.sessions)
	if err != nil {
		return fail(c, err, "Could not open session")
	}
	if err := g.Cart().SetQuantity(c.UserContext(), c.Params("productId"), req.Quantity); err != nil {
		return fail(c, err, "Could not update item")
	}
	return c.JSON(cartView(g.Cart(), h.orders))
}

// HandleRemoveItem removes an item. Removing an absent item is not an error.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	g, err := gate(c, h.sessions)
	if err != nil {
		return fail(c, err, "Could not open session")
	}
	if err := g.Cart().Remove(c.UserContext(), c.Params("productId")); err != nil {
		return fail(c, err, "Could not remove item")
	}
	return c.JSON(cartView(g.Cart(), h.orders))
}

// HandleClearCart empties the cart.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	g, err := gate(c, h.sessions)
	if err != nil {
		return fail(c, err, "Could not open session")
	}
	if err := g.Cart().Clear(c.UserContext()); err != nil {
		return fail(c, err, "Could not clear cart")
	}
	return c.JSON(cartView(g.Cart(), h.orders))
}
