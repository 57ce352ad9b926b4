package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/portalcms/account-gateway/internal/api/metrics"
	"github.com/portalcms/account-gateway/internal/api/middleware"
	"github.com/portalcms/account-gateway/internal/core/domain"
	"github.com/portalcms/account-gateway/internal/core/ports"
)

// AuthHandler is the thin HTTP adapter over the auth service. It owns the
// session cookie; the service layer only ever sees the opaque credential.
type AuthHandler struct {
	authService     ports.AuthService
	sessionLifetime time.Duration
}

func NewAuthHandler(authService ports.AuthService, sessionLifetime time.Duration) *AuthHandler {
	return &AuthHandler{authService: authService, sessionLifetime: sessionLifetime}
}

// Login authenticates against the realm and sets the session cookie.
//
// @Summary      Log in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  identityResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	identity, cred, err := h.authService.Login(c.Request().Context(), req.Username, req.Password, c.RealIP())
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(loginResult(err)).Inc()
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    cred,
		Path:     "/",
		Expires:  time.Now().Add(h.sessionLifetime),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, identityResponse{Identity: identity})
}

// Register creates a new account in the realm and its local mirror.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	accountID, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Username:         req.Username,
		Password:         req.Password,
		Email:            req.Email,
		SecretQuestionID: req.SecretQuestionID,
		SecretAnswer:     req.SecretAnswer,
		IPAddress:        c.RealIP(),
	})
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(registerResult(err)).Inc()
		return err
	}

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusCreated, registerResponse{AccountID: accountID})
}

// Logout invalidates the current session and expires the cookie. The
// response carries the freshly resolved guest identity.
//
// @Summary      Log out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  identityResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	identity := middleware.IdentityFrom(c)

	guest, err := h.authService.Logout(c.Request().Context(), identity, true)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if identity != nil && identity.Authenticated {
		metrics.LogoutsTotal.Inc()
	}
	return c.JSON(http.StatusOK, identityResponse{Identity: guest})
}

// Activate redeems an activation token minted at registration.
//
// @Summary      Activate an account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      activateRequest  true  "Activation token"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  errorResponse
// @Router       /auth/activate [post]
func (h *AuthHandler) Activate(c echo.Context) error {
	var req activateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	if err := h.authService.Activate(c.Request().Context(), req.Token); err != nil {
		metrics.ActivationsTotal.WithLabelValues("invalid").Inc()
		return err
	}

	metrics.ActivationsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, map[string]string{"status": "activated"})
}

// Me returns the identity resolved for this request, guest included.
//
// @Summary      Current identity
// @Tags         auth
// @Produce      json
// @Success      200  {object}  identityResponse
// @Router       /me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, identityResponse{Identity: middleware.IdentityFrom(c)})
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrInvalidField):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrAccessDenied), errors.Is(err, domain.ErrAccountNotActivated):
		return "denied"
	default:
		return "error"
	}
}

func registerResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidField),
		errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, domain.ErrIPBanned):
		return "rejected"
	default:
		return "error"
	}
}
