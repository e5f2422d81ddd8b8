package api

import (
	"errors"
	"expvar"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/embeddings"
)

// requestMetrics is published at /debug/vars.
var requestMetrics = expvar.NewMap("embed_requests")

// statusFor maps an error onto the HTTP status returned to the client.
func statusFor(err error) int {
	switch embeddings.KindOf(err) {
	case embeddings.KindValidation:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// handleError is the app-level error handler for errors that escape a
// handler or are raised by the transport itself.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		return s.fail(c, err)
	}

	switch fe.Code {
	case fiber.StatusRequestEntityTooLarge:
		// Uploads over the body limit are a size validation failure like
		// any other.
		return s.fail(c, embeddings.ErrPayloadTooLarge)
	default:
		return c.Status(fe.Code).JSON(ErrorResponse{Detail: fe.Message})
	}
}

// logRequests logs every request at debug level. Errors from later handlers
// are written through the app's ErrorHandler first so the logged status is
// the one the client receives.
func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	s.logger.Debug("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
		zap.Error(err),
	)
	return nil
}
