package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"github.com/example/marketplace/internal/logging"
)

// ErrorHandler renders every error returned by a handler as the standard
// failure envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logger := logging.Component("http")
		logger.Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("unhandled error")
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}

func statusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	switch {
	case errors.Is(err, errors.NotValid), errors.Is(err, errors.BadRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, errors.Unauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, errors.Forbidden):
		return fiber.StatusForbidden
	case errors.Is(err, errors.NotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errors.AlreadyExists):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}
