package serverutils

import (
	"github.com/gofiber/fiber/v2"
)

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessResponse(message string, data interface{}) Response {
	return Response{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// ApiError carries an HTTP status through the service layer to the
// error handler middleware.
type ApiError struct {
	Status  int
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *ApiError {
	return &ApiError{Status: fiber.StatusNotFound, Message: message}
}

func NewForbiddenError(message string) *ApiError {
	return &ApiError{Status: fiber.StatusForbidden, Message: message}
}

func NewBadRequestError(message string) *ApiError {
	return &ApiError{Status: fiber.StatusBadRequest, Message: message}
}

func NewUnprocessableError(message string) *ApiError {
	return &ApiError{Status: fiber.StatusUnprocessableEntity, Message: message}
}
