package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/alhaqil/storefront/internal/auth"
	"github.com/alhaqil/storefront/internal/backend"
	"github.com/alhaqil/storefront/internal/logging"
	mw "github.com/alhaqil/storefront/internal/middleware"
)

// AccountHandler serves the authenticated account surface: address book,
// order history and service requests. All routes sit behind RequireAuth.
type AccountHandler struct {
	API  *backend.Client
	Auth *auth.Manager
}

func (h *AccountHandler) Addresses(c echo.Context) error {
	ctx := c.Request().Context()
	sess := mw.AuthSession(c)

	addrs, err := h.API.Addresses(ctx, sess.Token, sess.UserID)
	if err != nil {
		return h.remoteError(c, "addresses_fetch_failed", err)
	}
	return c.JSON(http.StatusOK, addrs)
}

func (h *AccountHandler) CreateAddress(c echo.Context) error {
	ctx := c.Request().Context()
	sess := mw.AuthSession(c)

	var req backend.Address
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.AddressLine) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "address line is required")
	}

	addr, err := h.API.CreateAddress(ctx, sess.Token, sess.UserID, req)
	if err != nil {
		return h.remoteError(c, "address_create_failed", err)
	}
	return c.JSON(http.StatusCreated, addr)
}

func (h *AccountHandler) DeleteAddress(c echo.Context) error {
	ctx := c.Request().Context()
	sess := mw.AuthSession(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid address id")
	}

	if err := h.API.DeleteAddress(ctx, sess.Token, sess.UserID, uint(id)); err != nil {
		return h.remoteError(c, "address_delete_failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": id})
}

// SetDefaultAddress promotes one address; the backend demotes the rest so
// at most one default exists per customer.
func (h *AccountHandler) SetDefaultAddress(c echo.Context) error {
	ctx := c.Request().Context()
	sess := mw.AuthSession(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid address id")
	}

	if err := h.API.SetDefaultAddress(ctx, sess.Token, sess.UserID, uint(id)); err != nil {
		return h.remoteError(c, "address_default_failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"default": id})
}

func (h *AccountHandler) Orders(c echo.Context) error {
	ctx := c.Request().Context()
	sess := mw.AuthSession(c)

	orders, err := h.API.Orders(ctx, sess.Token, sess.UserID)
	if err != nil {
		return h.remoteError(c, "orders_fetch_failed", err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *AccountHandler) ServiceRequests(c echo.Context) error {
	ctx := c.Request().Context()
	sess := mw.AuthSession(c)

	reqs, err := h.API.ServiceRequests(ctx, sess.Token, sess.UserID)
	if err != nil {
		return h.remoteError(c, "service_requests_fetch_failed", err)
	}
	return c.JSON(http.StatusOK, reqs)
}

func (h *AccountHandler) remoteError(c echo.Context, event string, err error) error {
	ctx := c.Request().Context()
	if errors.Is(err, backend.ErrUnauthorized) {
		h.Auth.Teardown(ctx, mw.SessionID(c))
		return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	}
	logging.FromContext(ctx).Error(event, "error", err)
	return echo.NewHTTPError(http.StatusBadGateway, remoteMessage(err))
}
