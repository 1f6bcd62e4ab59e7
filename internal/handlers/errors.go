package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/policy-analyzer/internal/models"
	"alfredoptarigan/policy-analyzer/internal/services"
)

const genericFailure = "Failed to analyze policy. Please try again."

// errorStatus maps a pipeline error onto the HTTP status and public body.
// Only UserMessage text reaches the client; everything else is logged.
func errorStatus(err error) (int, models.ErrorResponse) {
	var (
		valErr *services.ValidationError
		orErr  *services.OracleError
	)

	switch {
	case errors.As(err, &valErr) && valErr.Kind == services.ValidationPayloadTooLarge:
		return fiber.StatusRequestEntityTooLarge, models.ErrorResponse{
			Error:   "Payload too large",
			Message: valErr.UserMessage(),
		}
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request",
			Message: userMessage(err),
		}
	case errors.Is(err, services.ErrExtraction):
		return fiber.StatusBadRequest, models.ErrorResponse{
			Error:   "Could not read PDF",
			Message: userMessage(err),
		}
	case errors.Is(err, services.ErrNotAPolicy):
		return fiber.StatusBadRequest, models.ErrorResponse{
			Error:   "Not an insurance policy",
			Message: userMessage(err),
		}
	case errors.As(err, &orErr) && orErr.Kind == services.OracleInvalidDocument:
		return fiber.StatusBadRequest, models.ErrorResponse{
			Error:        "Document rejected",
			Message:      orErr.UserMessage(),
			DetectedType: orErr.DetectedType,
		}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		if !errors.Is(err, services.ErrOracle) {
			return fiber.StatusRequestTimeout, models.ErrorResponse{
				Error:   "Request cancelled",
				Message: genericFailure,
			}
		}
	}

	return fiber.StatusInternalServerError, models.ErrorResponse{
		Error:   "Failed to analyze policy",
		Message: genericFailure,
	}
}

func userMessage(err error) string {
	var um services.UserMessenger
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return genericFailure
}

func respondError(c *fiber.Ctx, err error) error {
	status, body := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("http.request.failed",
			"path", c.Path(),
			"request_id", c.Locals(requestIDKey),
			"kind", services.ErrorKind(err),
			"error", err,
		)
	}
	return c.Status(status).JSON(body)
}

// ErrorHandler renders errors that escape a handler, such as Fiber's own
// body limit and routing errors, in the public error shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		slog.Error("http.unhandled_error", "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(models.ErrorResponse{Error: msg})
}
