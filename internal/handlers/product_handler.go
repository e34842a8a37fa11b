package handlers

import (
	"errors"

	"veggiemarket/internal/catalog"
	"veggiemarket/internal/models"
	"veggiemarket/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, validate *validator.Validate) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validate,
	}
}

// RegisterRoutes registers the public product routes.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleListProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
}

// RegisterAdminRoutes registers product management routes.
func (h *ProductHandler) RegisterAdminRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

// HandleListProducts filters and sorts the catalog from the query string.
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	filters, sort, err := catalog.ParseQuery(c.Queries())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid filters",
			"error":   err.Error(),
		})
	}

	listing, err := h.service.Browse(c.UserContext(), filters, sort)
	if err != nil {
		if errors.Is(err, services.ErrCatalogNotLoaded) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"message": "Catalog not loaded",
				"loaded":  false,
			})
		}
		return fail(c, err, "Could not retrieve products")
	}
	return c.JSON(listing)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err, "Could not retrieve product")
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return badBody(c, err)
	}
	product.ID = ""
	if err := h.validate.Struct(product); err != nil {
		return fail(c, err, "Validation failed")
	}

	if err := h.service.CreateProduct(c.UserContext(), &product); err != nil {
		return fail(c, err, "Could not create product")
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct replaces an existing product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return badBody(c, err)
	}
	product.ID = c.Params("id")
	if err := h.validate.Struct(product); err != nil {
		return fail(c, err, "Validation failed")
	}

	if err := h.service.UpdateProduct(c.UserContext(), &product); err != nil {
		return fail(c, err, "Could not update product")
	}
	return c.JSON(product)
}

// HandleDeleteProduct deletes a product by its ID.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.DeleteProduct(c.UserContext(), id); err != nil {
		return fail(c, err, "Could not delete product")
	}
	return c.JSON(fiber.Map{
		"message": "Product deleted",
		"id":      id,
	})
}
