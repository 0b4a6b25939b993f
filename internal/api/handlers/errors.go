package handlers

import (
	"errors"
	"strconv"

	"github.com/amaumene/storarr/internal/controllers"
	"github.com/amaumene/storarr/internal/filesystem"
	"github.com/amaumene/storarr/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps a controller error to its HTTP status
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, controllers.ErrInvalidState), errors.Is(err, controllers.ErrMissingExternalID):
		return fiber.StatusConflict
	case errors.Is(err, filesystem.ErrUnauthorized):
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders handler errors as JSON
func ErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := StatusFor(err)
		if status >= fiber.StatusInternalServerError {
			logger.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("Request failed")
		}
		return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
	}
}

// mediaID parses the :id route parameter
func mediaID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid media item id")
	}
	return uint(id), nil
}
