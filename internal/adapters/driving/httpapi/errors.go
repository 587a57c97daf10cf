package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/logger"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes. Anything unrecognised
// is treated as an upstream failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownBook):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// handleError writes errors as JSON.
func handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := statusFor(err)
	msg := err.Error()

	var bindErr *echo.BindingError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &bindErr):
		code = http.StatusBadRequest
		msg = "invalid parameter " + bindErr.Field
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}

	if code >= http.StatusInternalServerError {
		logger.Warn("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}
	if werr := c.JSON(code, errorResponse{Error: msg}); werr != nil {
		logger.Warn("writing error response: %v", werr)
	}
}
