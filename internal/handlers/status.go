package handlers

import (
	"errors"

	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// statusForError maps a service error kind to its stable HTTP status.
// Validation failures, unknown items and insufficient stock are caller
// errors; everything unrecognized is a server error.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrUnknownItem),
		errors.Is(err, services.ErrInsufficientAvailability):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}
