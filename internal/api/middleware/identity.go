package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/portalcms/account-gateway/internal/api/metrics"
	"github.com/portalcms/account-gateway/internal/core/domain"
	"github.com/portalcms/account-gateway/internal/core/ports"
)

// SessionCookieName is the cookie carrying the opaque session credential.
const SessionCookieName = "session"

const identityContextKey = "identity"

// ResolveIdentity resolves every request's identity from the session cookie
// and stores it in the echo context. A missing, malformed, or invalidated
// credential yields the guest identity; only a fatal resolution error (no
// consistent identity producible at all) aborts the request.
func ResolveIdentity(resolver ports.IdentityResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var cred string
			if cookie, err := c.Cookie(SessionCookieName); err == nil {
				cred = cookie.Value
			}

			start := time.Now()
			identity, err := resolver.Resolve(c.Request().Context(), cred, c.RealIP())
			metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "identity resolution failed")
			}

			outcome := "guest"
			if identity.Authenticated {
				outcome = "authenticated"
			}
			metrics.ResolutionsTotal.WithLabelValues(outcome).Inc()

			c.Set(identityContextKey, identity)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by ResolveIdentity, or nil when
// the middleware did not run.
func IdentityFrom(c echo.Context) *domain.Identity {
	identity, _ := c.Get(identityContextKey).(*domain.Identity)
	return identity
}
