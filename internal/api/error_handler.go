package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/portalcms/account-gateway/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Known domain errors → deterministic HTTP codes. Messages are fixed
	// strings so realm/storage details never leak.
	switch {
	case errors.Is(err, domain.ErrInvalidField):
		return http.StatusBadRequest, "empty or malformed field"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden, "account access denied"
	case errors.Is(err, domain.ErrAccountNotActivated):
		return http.StatusForbidden, "account not activated"
	case errors.Is(err, domain.ErrIPBanned):
		return http.StatusForbidden, "ip address is banned"
	case errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict, "username already exists"
	case errors.Is(err, domain.ErrActivationInvalid):
		return http.StatusBadRequest, "activation token invalid or expired"
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "account not found"
	case errors.Is(err, domain.ErrGroupNotFound):
		return http.StatusNotFound, "group not found"
	case errors.Is(err, domain.ErrRealmCreateFailed):
		// The realm rejected creation; nothing the client did wrong per se,
		// but nothing we can retry for them either.
		return http.StatusBadGateway, "account creation failed"
	}

	// Unexpected error (ErrProvisioningFailed lands here deliberately):
	// log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
