package handlers

import (
	"fmt"

	"veggiemarket/internal/services"
	"veggiemarket/internal/session"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	sessions *session.Manager
	service  *services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(sessions *session.Manager, service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		sessions: sessions,
		service:  service,
	}
}

// RegisterRoutes registers the customer order routes.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/:id/cancel", h.HandleCancelOrder)
}

// RegisterAdminRoutes registers order administration routes.
func (h *OrderHandler) RegisterAdminRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetAllOrders)
	orderRoutes.Patch("/:id/status", h.HandleUpdateOrderStatus)
}

// HandleGetOrders lists the signed-in user's orders, newest first.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	g, err := gate(c, h.sessions)
	if err != nil {
		return fail(c, err, "Could not open session")
	}
	user, ok := signedIn(c, g)
	if !ok {
		return nil
	}
	orders, err := h.service.ListForUser(c.UserContext(), user.ID)
	if err != nil {
		return fail(c, err, "Could not retrieve orders")
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves one of the signed-in user's orders.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	g, err := gate(c, h.sessions)
	if err != nil {
		return fail(c, err, "Could not open session")
	}
	user, ok := signedIn(c, g)
	if !ok {
		return nil
	}
	order, err := h.service.GetForUser(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return fail(c, err, "Could not retrieve order")
	}
	return c.JSON(order)
}

// HandleCancelOrder cancels a pending or processing order.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	g, err := gate(c, h.sessions)
	if err != nil {
		return fail(c, err, "Could not open session")
	}
	user, ok := signedIn(c, g)
	if !ok {
		return nil
	}
	order, err := h.service.Cancel(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return fail(c, err, "Could not cancel order")
	}
	return c.JSON(order)
}

// HandleGetAllOrders retrieves every order.
func (h *OrderHandler) HandleGetAllOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetAllOrders(c.UserContext())
	if err != nil {
		return fail(c, err, "Could not retrieve orders")
	}
	return c.JSON(orders)
}

// HandleUpdateOrderStatus updates the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var updateData struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&updateData); err != nil {
		return badBody(c, err)
	}
	if updateData.Status == "" {
		return validationFailed(c, map[string]string{"status": "is required"})
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), orderID, updateData.Status)
	if err != nil {
		return fail(c, err, "Could not update order status")
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s status updated successfully to %s", orderID, order.Status),
		"order":   order,
	})
}
