package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/alhaqil/storefront/internal/auth"
	"github.com/alhaqil/storefront/internal/models"
)

// SessionCookie identifies a browser session, authenticated or not. The
// guest cart hangs off this id until a login merges it upstream.
const SessionCookie = "storefront_session"

const (
	sessionIDKey   = "session_id"
	authSessionKey = "auth_session"
)

// EnsureSession assigns a session id cookie on first contact and exposes it
// to handlers via SessionID.
func EnsureSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var id string
			if cookie, err := c.Cookie(SessionCookie); err == nil && cookie.Value != "" {
				id = cookie.Value
			} else {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     SessionCookie,
					Value:    id,
					Path:     "/",
					Expires:  time.Now().Add(365 * 24 * time.Hour),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(sessionIDKey, id)
			return next(c)
		}
	}
}

// RequireAuth rejects requests without a fresh authenticated session. An
// expired session has already been torn down by the manager when the 401
// goes out.
func RequireAuth(m *auth.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := m.Current(c.Request().Context(), SessionID(c))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "login required")
			}
			c.Set(authSessionKey, sess)
			return next(c)
		}
	}
}

func SessionID(c echo.Context) string {
	if v, ok := c.Get(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// AuthSession returns the authenticated session set by RequireAuth, nil on
// guest routes.
func AuthSession(c echo.Context) *models.Session {
	if v, ok := c.Get(authSessionKey).(*models.Session); ok {
		return v
	}
	return nil
}

// Locale reads the request language, defaulting to English.
func Locale(c echo.Context) string {
	if l := c.QueryParam("lang"); l == "ar" || l == "en" {
		return l
	}
	if l := c.Request().Header.Get("Accept-Language"); len(l) >= 2 && l[:2] == "ar" {
		return "ar"
	}
	return "en"
}
