package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ddanilin/storefront/internal/adminapi"
	"github.com/ddanilin/storefront/internal/authclient"
	"github.com/ddanilin/storefront/internal/session"
)

// writeError maps the engine's error taxonomy to status codes:
// validation 400, remote rejection 422 (message verbatim), transport
// 503 (generic retryable).
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, session.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, authclient.ErrTransport), errors.Is(err, adminapi.ErrTransport):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service temporarily unavailable"})
	}

	var authRejected *authclient.RejectedError
	if errors.As(err, &authRejected) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": authRejected.Message})
	}
	var adminRejected *adminapi.RejectedError
	if errors.As(err, &adminRejected) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": adminRejected.Message})
	}

	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
