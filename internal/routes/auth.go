package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/turfbook/turfbook/internal/auth"
)

// RegisterAuthRoutes wires the phone verification endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/send-otp", rateLimiter, h.SendOTP)
	} else {
		group.Post("/send-otp", h.SendOTP)
	}
	group.Post("/verify-otp", h.VerifyOTP)
}

// RegisterUserRoutes wires the authenticated profile endpoints.
func RegisterUserRoutes(r fiber.Router, h *auth.Handler) {
	group := r.Group("/users/me")
	group.Get("", h.Me)
	group.Put("/name", h.SetName)
}
