package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireAuthenticated rejects guests.
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := IdentityFrom(c)
			if identity == nil || !identity.Authenticated {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}

// RequirePermission enforces that the resolved identity holds every listed
// permission key. Super admins pass unconditionally.
func RequirePermission(keys ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := IdentityFrom(c)
			if identity == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			for _, key := range keys {
				if !identity.HasPermission(key) {
					return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
				}
			}
			return next(c)
		}
	}
}
