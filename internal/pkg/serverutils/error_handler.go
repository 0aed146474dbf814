package serverutils

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"ai-docqa-be/pkg/rag/workflow"
)

// ErrorHandlerMiddleware converts service errors into JSON responses.
// Synthesis failures come back as 502 with a diagnostic message; the
// retrieved evidence stays in the conversation so a retry is cheap.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var apiErr *ApiError
		if errors.As(err, &apiErr) {
			return ctx.Status(apiErr.Status).JSON(Response{
				Success: false,
				Message: apiErr.Message,
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(Response{
				Success: false,
				Message: fiberErr.Message,
			})
		}

		if errors.Is(err, workflow.ErrAnswerSynthesis) {
			return ctx.Status(fiber.StatusBadGateway).JSON(Response{
				Success: false,
				Message: "The answer could not be generated right now. Your retrieved evidence is saved, please retry.",
			})
		}

		log.Printf("[ERROR] Unhandled error on %s %s: %v", ctx.Method(), ctx.Path(), err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(Response{
			Success: false,
			Message: "Internal server error",
		})
	}
}
