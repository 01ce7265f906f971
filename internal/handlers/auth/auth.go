package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alhaqil/storefront/internal/auth"
	"github.com/alhaqil/storefront/internal/backend"
	"github.com/alhaqil/storefront/internal/logging"
	mw "github.com/alhaqil/storefront/internal/middleware"
)

type AuthHandler struct {
	Manager *auth.Manager
	API     *backend.Client
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	sess, err := h.Manager.Login(ctx, mw.SessionID(c), req.Email, req.Password, mw.Locale(c))
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			l.Warn("login_failed", "status", apiErr.Status, "reason", apiErr.Message)
			return echo.NewHTTPError(http.StatusUnauthorized, apiErr.Message)
		}
		if errors.Is(err, backend.ErrUnauthorized) {
			l.Warn("login_failed", "status", 401, "reason", "invalid credentials")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		}
		l.Error("login_failed", "status", 502, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "login unavailable")
	}

	l.Info("login_success", "user_id", sess.UserID)
	return c.JSON(http.StatusOK, echo.Map{"user_id": sess.UserID})
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		Password  string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.API.Register(ctx, req.FirstName, req.LastName, req.Email, req.Phone, req.Password, mw.Locale(c))
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			l.Warn("register_failed", "status", apiErr.Status, "reason", apiErr.Message)
			return echo.NewHTTPError(http.StatusUnprocessableEntity, apiErr.Message)
		}
		l.Error("register_failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "registration unavailable")
	}

	// Registration logs the user in when the backend returns a token.
	if res.Token != "" && res.User.ID != 0 {
		if _, err := h.Manager.Login(ctx, mw.SessionID(c), req.Email, req.Password, mw.Locale(c)); err != nil {
			l.Warn("post_register_login_failed", "error", err)
		}
	}

	l.Info("register_success", "user_id", res.User.ID)
	return c.JSON(http.StatusOK, echo.Map{"user_id": res.User.ID})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.Manager.Logout(c.Request().Context(), mw.SessionID(c)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Session is the app-start restore: returns the authenticated identity if
// the persisted session is still fresh, 401 otherwise.
func (h *AuthHandler) Session(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_session")

	sess, err := h.Manager.Restore(ctx, mw.SessionID(c), mw.Locale(c))
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) || errors.Is(err, auth.ErrExpired) {
			return echo.NewHTTPError(http.StatusUnauthorized, "no active session")
		}
		l.Error("session_restore_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": sess.UserID})
}
