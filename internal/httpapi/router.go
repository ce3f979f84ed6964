package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/mvolkov/linkcut/internal/auth"
)

const identityKey = "requester"

// Routes registers all endpoints. The catch-all redirect goes last so the
// /links and /register paths win.
func (h *Handler) Routes(app *fiber.App) {
	app.Post("/register", h.handleRegister)
	app.Post("/links/shorten", h.handleShorten)
	app.Get("/links/search", h.handleSearch)
	app.Get("/links/:short_code/stats", h.handleStats)
	app.Put("/links/:short_code", h.requireAuth, h.handleUpdate)
	app.Delete("/links/:short_code", h.requireAuth, h.handleDelete)
	app.Get("/:short_code", h.handleRedirect)
}

// requireAuth resolves the Authorization header to an identity or ends the
// request: 401 for missing/bad credentials, 400 for a malformed header.
func (h *Handler) requireAuth(c *fiber.Ctx) error {
	identity, err := h.auth.Authenticate(c.UserContext(), c.Get("Authorization"))
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing Authorization header"})
	case errors.Is(err, auth.ErrMalformedHeader):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid Authorization format"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	case err != nil:
		return internalError(c, "authenticate", err)
	}
	c.Locals(identityKey, identity)
	return c.Next()
}

func requesterFrom(c *fiber.Ctx) auth.Identity {
	identity, _ := c.Locals(identityKey).(auth.Identity)
	return identity
}
