package handlers

import (
	"veggiemarket/internal/models"
	"veggiemarket/internal/services"
	"veggiemarket/internal/session"

	"github.com/gofiber/fiber/v2"
)

// CheckoutHandler prices the cart and turns it into an order.
type CheckoutHandler struct {
	sessions *session.Manager
	orders   *services.OrderService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(sessions *session.Manager, orders *services.OrderService) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		orders:   orders,
	}
}

// RegisterRoutes registers the checkout routes.
func (h *CheckoutHandler) RegisterRoutes(router fiber.Router) {
	checkoutRoutes := router.Group("/checkout")
	checkoutRoutes.Get("/summary", h.HandleSummary)
	checkoutRoutes.Post("/", h.HandlePlaceOrder)
}

// HandleSummary returns the cart with tax, shipping and total.
func (h *CheckoutHandler) HandleSummary(c *fiber.Ctx) error {
	g, err := gate(c, h.sessions)
	if err != nil {
		return fail(c, err, "Could not open session")
	}
	return c.JSON(cartView(g.Cart(), h.orders))
}

// HandlePlaceOrder places an order for the signed-in user.
func (h *CheckoutHandler) HandlePlaceOrder(c *fiber.Ctx) error {
	g, err := gate(c, h.sessions)
	if err != nil {
		return fail(c, err, "Could not open session")
	}
	user, ok := signedIn(c, g)
	if !ok {
		return nil
	}

	var form models.CheckoutForm
	if err := c.BodyParser(&form); err != nil {
		return badBody(c, err)
	}
	order, err := h.orders.PlaceOrder(c.UserContext(), user, g.Cart(), form)
	if err != nil {
		return fail(c, err, "Could not place order")
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}
