package handlers

import (
	"errors"

	"veggiemarket/internal/cart"
	"veggiemarket/internal/logger"
	"veggiemarket/internal/middleware"
	"veggiemarket/internal/models"
	"veggiemarket/internal/services"
	"veggiemarket/internal/session"
	"veggiemarket/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, session.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, session.ErrEmailTaken),
		errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, services.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrUnknownProduct),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, cart.ErrInvalidQuantity):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrCatalogNotLoaded):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// fail writes err as a JSON error response. Validation errors become a 400
// with per-field messages; unexpected errors are logged.
func fail(c *fiber.Ctx, err error, message string) error {
	if msgs := validation.Messages(err); msgs != nil {
		return validationFailed(c, msgs)
	}
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logger.FromCtx(c.UserContext()).Error(message, zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}

func validationFailed(c *fiber.Ctx, msgs map[string]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  msgs,
	})
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

// gate returns the session gate of the calling device. Devices that sent no
// usable id get a gate that is not kept between requests.
func gate(c *fiber.Ctx, sessions *session.Manager) (*session.Gate, error) {
	if middleware.DeviceIssued(c) {
		return sessions.Detached(c.UserContext(), middleware.Device(c))
	}
	return sessions.Gate(c.UserContext(), middleware.Device(c))
}

// signedIn returns the device's identity or writes a 401.
func signedIn(c *fiber.Ctx, g *session.Gate) (models.Identity, bool) {
	id, ok := g.Current()
	if !ok {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Sign in required",
		})
	}
	return id, ok
}
