package logging

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// UserIDFunc extracts the authenticated user id, if any, for the access log.
type UserIDFunc func(c *fiber.Ctx) string

// RequestLogger writes one structured line per request.
func RequestLogger(logger zerolog.Logger, userID UserIDFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()

		status := c.Response().StatusCode()
		if chainErr != nil {
			if fe, ok := chainErr.(*fiber.Error); ok {
				status = fe.Code
			} else if status < fiber.StatusBadRequest {
				status = fiber.StatusInternalServerError
			}
		}

		var event *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			event = logger.Error()
		case status >= fiber.StatusBadRequest:
			event = logger.Warn()
		default:
			event = logger.Info()
		}

		event = event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.IP())
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			event = event.Str("request_id", rid)
		}
		if userID != nil {
			if id := userID(c); id != "" {
				event = event.Str("user_id", id)
			}
		}
		if chainErr != nil {
			event = event.Err(chainErr)
		}
		event.Msg("request")

		return chainErr
	}
}
