package handlers

import (
	"veggiemarket/internal/middleware"
	"veggiemarket/internal/services"
	"veggiemarket/internal/session"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	sessions    *session.Manager
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler. authService issues tokens and
// lists profiles; credentials are checked by the sessions' verifier.
func NewAuthHandler(sessions *session.Manager, authService *services.AuthService, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{
		sessions:    sessions,
		authService: authService,
		validate:    validate,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
// extra runs before login and register, e.g. a rate limiter.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, extra ...fiber.Handler) {
	authRoutes := router.Group("/auth")
	chain := func(h fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, extra...), h)
	}
	authRoutes.Post("/register", chain(h.HandleRegister)...)
	authRoutes.Post("/login", chain(h.HandleLogin)...)
	authRoutes.Post("/logout", h.HandleLogout)
	authRoutes.Get("/me", h.HandleMe)
}

// RegisterAdminRoutes registers user administration routes.
func (h *AuthHandler) RegisterAdminRoutes(router fiber.Router) {
	router.Get("/users", h.HandleListUsers)
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
}

// HandleRegister creates an account and signs the device in.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return fail(c, err, "Validation failed")
	}

	g, err := gate(c, h.sessions)
	if err != nil {
		return fail(c, err, "Could not open session")
	}
	id, err := g.Register(c.UserContext(), req.Email, req.Password, req.Name)
	if err != nil {
		return fail(c, err, "Registration failed")
	}
	token, err := h.authService.IssueToken(id)
	if err != nil {
		return fail(c, err, "Could not issue token")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    id,
		"token":   token,
	})
}

// HandleLogin signs the device in and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return fail(c, err, "Validation failed")
	}

	g, err := gate(c, h.sessions)
	if err != nil {
		return fail(c, err, "Could not open session")
	}
	id, err := g.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, err, "Authentication failed")
	}
	token, err := h.authService.IssueToken(id)
	if err != nil {
		return fail(c, err, "Could not issue token")
	}
	return c.JSON(fiber.Map{
		"message": "Login successful",
		"user":    id,
		"token":   token,
	})
}

// HandleLogout signs the device out and drops its carts.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	if err := h.sessions.Logout(c.UserContext(), middleware.Device(c)); err != nil {
		return fail(c, err, "Logout failed")
	}
	return c.JSON(fiber.Map{
		"message": "Logged out",
	})
}

// HandleMe returns the signed-in identity of the device.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	g, err := gate(c, h.sessions)
	if err != nil {
		return fail(c, err, "Could not open session")
	}
	id, ok := signedIn(c, g)
	if !ok {
		return nil
	}
	return c.JSON(fiber.Map{
		"user": id,
	})
}

// HandleListUsers lists every registered profile.
func (h *AuthHandler) HandleListUsers(c *fiber.Ctx) error {
	profiles, err := h.authService.ListProfiles(c.UserContext())
	if err != nil {
		return fail(c, err, "Could not retrieve users")
	}
	return c.JSON(profiles)
}
