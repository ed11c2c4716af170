package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-Id"

func NewLogger() fiber.Handler {
	return newRequestLogger(func() zerolog.Logger { return log.Logger })
}

// newRequestLogger tags each request with an id and logs it once handled.
// Client errors log at warn, server errors and upstream failures at error.
func newRequestLogger(baseLogger func() zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		startTime := time.Now()

		requestID := c.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDHeader, requestID)

		msg := "HTTP Request"
		if err := c.Next(); err != nil {
			msg = err.Error()

			// unmatched routes and the like still need a response written before the status is read
			if handlerErr := c.App().Config().ErrorHandler(c, err); handlerErr != nil {
				c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		code := c.Response().StatusCode()

		ipAddress := c.IP()
		if cloudflareConnectingIP := c.Get("CF-Connecting-IP"); cloudflareConnectingIP != "" {
			ipAddress = cloudflareConnectingIP
		}

		loggerContext := baseLogger().With().
			Str("request", requestID).
			Int("status", code).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", ipAddress).
			Dur("latency", time.Since(startTime))

		if userID, ok := c.Locals("account_userid").(string); ok && userID != "" {
			loggerContext = loggerContext.Str("user", userID)
		}
		if stationID := c.Params("stationId"); stationID != "" {
			loggerContext = loggerContext.Str("stationid", stationID)
		}
		if routeID := c.Params("routeId"); routeID != "" {
			loggerContext = loggerContext.Str("routeid", routeID)
		}

		requestLogger := loggerContext.Logger()

		switch {
		case code >= fiber.StatusInternalServerError, code == fiber.StatusFailedDependency:
			requestLogger.Error().Msg(msg)
		case code >= fiber.StatusBadRequest:
			requestLogger.Warn().Msg(msg)
		default:
			requestLogger.Info().Msg(msg)
		}

		return nil
	}
}
