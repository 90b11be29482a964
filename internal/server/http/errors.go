package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"chessmate/internal/core"
)

// Error codes that are not error kinds
const (
	ErrRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrInvalidContent    = "INVALID_CONTENT_TYPE"
	ErrInvalidRequest    = "INVALID_REQUEST"
	ErrInternalError     = "INTERNAL_ERROR"
	ErrArchiveDisabled   = "ARCHIVE_DISABLED"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// statusFor maps an error kind onto an HTTP status
func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindInvalidArgument:
		return fiber.StatusBadRequest
	case core.KindNotFound:
		return fiber.StatusNotFound
	case core.KindDataIntegrity, core.KindInsufficientData:
		return fiber.StatusUnprocessableEntity
	case core.KindIO:
		return fiber.StatusBadGateway
	case core.KindEngine:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders a domain error with its kind as the code
func writeError(c *fiber.Ctx, err error) error {
	kind := core.KindOf(err)
	status := statusFor(kind)

	resp := ErrorResponse{Error: err.Error(), Code: string(kind)}
	if errors.Is(err, context.DeadlineExceeded) {
		status = fiber.StatusGatewayTimeout
	}
	if status == fiber.StatusInternalServerError {
		resp.Code = ErrInternalError
	}
	return c.Status(status).JSON(resp)
}

// customErrorHandler provides consistent error responses
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	response := ErrorResponse{
		Error: "internal server error",
		Code:  ErrInternalError,
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		response.Error = fe.Message

		switch code {
		case fiber.StatusNotFound:
			response.Code = string(core.KindNotFound)
		case fiber.StatusBadRequest:
			response.Code = ErrInvalidRequest
		case fiber.StatusTooManyRequests:
			response.Code = ErrRateLimitExceeded
		}
	}

	return c.Status(code).JSON(response)
}
