package v1

import (
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/smartcache/internal/errors"
)

// statusClientClosedRequest is the non-standard status for requests the
// client abandoned.
const statusClientClosedRequest = 499

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPStatus maps an error code to an HTTP status.
func HTTPStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case errors.ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case errors.ErrCodeLLMCallFailed:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeContextCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *APIV1Service) writeError(c echo.Context, err error) error {
	code := errors.GetCodeFromError(err, "INTERNAL")
	status := HTTPStatus(code)

	message := err.Error()
	var aiErr *errors.AIError
	if stderrors.As(err, &aiErr) {
		message = aiErr.Message
	}
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed",
			slog.String("path", c.Path()),
			slog.String("error_code", string(code)),
			slog.String("error", err.Error()),
		)
	}
	return c.JSON(status, ErrorResponse{Code: string(code), Message: message})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    string(errors.ErrCodeInvalidArgument),
		Message: message,
	})
}
