package middleware

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// HeaderDeviceID identifies the browser or app install a request comes from.
	HeaderDeviceID = "X-Device-ID"
	// LocalDeviceID is the Locals key holding the resolved device id.
	LocalDeviceID = "device_id"
	// LocalDeviceIssued is set when the id was minted for this request.
	LocalDeviceIssued = "device_issued"
)

// DeviceID resolves the device id from the X-Device-ID header, issuing a
// fresh one when it is missing or fails the device_id rule of validate.
// The id is echoed back so the client can keep it.
func DeviceID(validate *validator.Validate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(HeaderDeviceID)
		if validate.Var(id, "required,min=8,max=64,device_id") != nil {
			id = uuid.NewString()
			c.Locals(LocalDeviceIssued, true)
		}
		c.Locals(LocalDeviceID, id)
		c.Set(HeaderDeviceID, id)
		return c.Next()
	}
}

// Device returns the id stored by DeviceID.
func Device(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalDeviceID).(string)
	return id
}

// DeviceIssued reports whether the client sent no usable device id, so the
// one returned by Device was minted for this request.
func DeviceIssued(c *fiber.Ctx) bool {
	issued, _ := c.Locals(LocalDeviceIssued).(bool)
	return issued
}
