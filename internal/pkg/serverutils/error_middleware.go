package serverutils

import (
	"errors"

	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

const internalErrorMessage = "An internal error occurred"

// ErrorHandlerMiddleware turns errors returned by handlers into the JSON envelope.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, log, err)
	}
}

// WriteError renders err with the status code of its kind. Internal failures
// are logged in full and answered with a generic message.
func WriteError(ctx *fiber.Ctx, log logger.ILogger, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
	}

	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	message := err.Error()

	if kind == apperror.KindInternal {
		log.Error("HTTP", "Unhandled error", map[string]interface{}{
			"method": ctx.Method(),
			"path":   ctx.Path(),
			"error":  err.Error(),
		})
		message = internalErrorMessage
	} else if status >= fiber.StatusInternalServerError {
		log.Warn("HTTP", "Upstream failure", map[string]interface{}{
			"path":  ctx.Path(),
			"kind":  string(kind),
			"error": err.Error(),
		})
	}

	return ctx.Status(status).JSON(TypedErrorResponse(status, string(kind), message))
}

// PublicMessage is the text a client may see for err.
func PublicMessage(err error) string {
	if apperror.KindOf(err) == apperror.KindInternal {
		return internalErrorMessage
	}
	return err.Error()
}
