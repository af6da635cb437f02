package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/turfbook/turfbook/internal/auth"
)

// BearerAuth validates the bearer token and exposes its subject as the
// account id local.
func BearerAuth(tokens *auth.TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "Missing bearer token")
		}
		claims, err := tokens.Verify(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "Invalid or expired token")
		}
		c.Locals(auth.LocalAccountID, claims.Subject)
		return c.Next()
	}
}
