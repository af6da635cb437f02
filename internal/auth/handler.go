package auth

import (
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"

	"github.com/turfbook/turfbook/internal/accounts"
	"github.com/turfbook/turfbook/internal/otp"
)

// LocalAccountID is the fiber.Ctx local set by the bearer middleware.
const LocalAccountID = "account_id"

// Handler exposes the verification and profile endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler constructs an auth HTTP handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type sendRequest struct {
	Phone string `json:"phone"`
}

type verifyRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

func (r verifyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Phone, validation.Required),
		validation.Field(&r.OTP, validation.Required, validation.Length(otp.CodeLength, otp.CodeLength), is.Digit),
	)
}

type nameRequest struct {
	Name string `json:"name"`
}

func (r nameRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.RuneLength(1, 100)),
	)
}

// SendOTP issues a verification code.
func (h *Handler) SendOTP(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	if err := h.svc.SendCode(c.UserContext(), req.Phone); err != nil {
		return h.fail(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "OTP sent"})
}

// VerifyOTP exchanges a code for a token.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Please enter the 6-digit code")
	}
	v, err := h.svc.Verify(c.UserContext(), req.Phone, req.OTP)
	if err != nil {
		return h.fail(err)
	}
	return c.Status(http.StatusOK).JSON(v)
}

// SetName updates the caller's display name.
func (h *Handler) SetName(c *fiber.Ctx) error {
	accountID, _ := c.Locals(LocalAccountID).(string)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
	}
	var req nameRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Name is required")
	}
	token, err := h.svc.Rename(c.UserContext(), accountID, req.Name)
	if err != nil {
		return h.fail(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"token": token})
}

// Me returns the caller's account.
func (h *Handler) Me(c *fiber.Ctx) error {
	accountID, _ := c.Locals(LocalAccountID).(string)
	account, err := h.svc.Me(c.UserContext(), accountID)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(fiber.Map{
		"id":         account.ID,
		"phone":      account.Phone,
		"name":       account.Name,
		"role":       account.Role,
		"created_at": account.CreatedAt,
		"last_login": account.LastLogin,
	})
}

// fail maps domain errors onto HTTP errors with client-facing messages.
func (h *Handler) fail(err error) error {
	switch {
	case errors.Is(err, ErrInvalidPhone):
		return fiber.NewError(http.StatusBadRequest, "Please enter a valid phone number")
	case errors.Is(err, otp.ErrInvalidCode):
		return fiber.NewError(http.StatusUnauthorized, "Invalid OTP")
	case errors.Is(err, otp.ErrExpired):
		return fiber.NewError(http.StatusUnauthorized, "OTP expired, please request a new one")
	case errors.Is(err, otp.ErrTooManyAttempts):
		return fiber.NewError(http.StatusTooManyRequests, "Too many incorrect attempts, please request a new OTP")
	case errors.Is(err, accounts.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "Account not found")
	}
	if h.logger != nil {
		h.logger.Error("auth request failed", slog.Any("error", err))
	}
	return fiber.NewError(http.StatusInternalServerError, "Something went wrong")
}
