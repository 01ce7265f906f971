package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/alhaqil/storefront/internal/auth"
	"github.com/alhaqil/storefront/internal/backend"
	cartengine "github.com/alhaqil/storefront/internal/cart"
	"github.com/alhaqil/storefront/internal/logging"
	mw "github.com/alhaqil/storefront/internal/middleware"
	"github.com/alhaqil/storefront/internal/models"
)

type CartHandler struct {
	Engine *cartengine.Engine
	Auth   *auth.Manager
}

// identity resolves the authenticated principal, nil for guests. Cart
// routes work for both.
func (h *CartHandler) identity(c echo.Context) *cartengine.Identity {
	sess, err := h.Auth.Current(c.Request().Context(), mw.SessionID(c))
	if err != nil {
		return nil
	}
	return &cartengine.Identity{UserID: sess.UserID, Token: sess.Token}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	items, err := h.Engine.Items(mw.SessionID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_add")

	var req struct {
		ProductID     int    `json:"product_id"`
		NameEN        string `json:"name_en"`
		NameAR        string `json:"name_ar"`
		DescriptionEN string `json:"description_en"`
		DescriptionAR string `json:"description_ar"`
		Price         string `json:"price"`
		Image         string `json:"image"`
		Quantity      uint   `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	line := models.CartLine{
		ProductID:     req.ProductID,
		NameEN:        req.NameEN,
		NameAR:        req.NameAR,
		DescriptionEN: req.DescriptionEN,
		DescriptionAR: req.DescriptionAR,
		Price:         req.Price,
		Image:         req.Image,
		Quantity:      req.Quantity,
	}

	applied, err := h.Engine.AddItem(ctx, mw.SessionID(c), line, h.identity(c), mw.Locale(c))
	if err != nil && !errors.Is(err, cartengine.ErrRemote) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			h.Auth.Teardown(ctx, mw.SessionID(c))
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}
		// Local state is the truth until the next sync; report it.
		l.Warn("cart_add_remote_failed", "product_id", req.ProductID, "error", err)
	}
	return c.JSON(http.StatusOK, applied)
}

func (h *CartHandler) UpdateQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_update")

	productID, err := strconv.Atoi(c.Param("id"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	err = h.Engine.UpdateQuantity(ctx, mw.SessionID(c), productID, req.Quantity, h.identity(c), mw.Locale(c))
	if err != nil && !errors.Is(err, cartengine.ErrRemote) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			h.Auth.Teardown(ctx, mw.SessionID(c))
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}
		l.Warn("cart_update_remote_failed", "product_id", productID, "error", err)
	}

	items, err := h.Engine.Items(mw.SessionID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_remove")

	productID, err := strconv.Atoi(c.Param("id"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	err = h.Engine.RemoveItem(ctx, mw.SessionID(c), productID, h.identity(c), mw.Locale(c))
	if err != nil && !errors.Is(err, cartengine.ErrRemote) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			h.Auth.Teardown(ctx, mw.SessionID(c))
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}
		l.Warn("cart_remove_remote_failed", "product_id", productID, "error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"deleted_item": productID})
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_clear")

	err := h.Engine.Clear(ctx, mw.SessionID(c), h.identity(c), mw.Locale(c))
	if err != nil && !errors.Is(err, cartengine.ErrRemote) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			h.Auth.Teardown(ctx, mw.SessionID(c))
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}
		l.Warn("cart_clear_remote_failed", "error", err)
	}
	return c.JSON(http.StatusOK, []models.CartLine{})
}

// SyncCart re-runs reconciliation explicitly, used on locale change while
// authenticated.
func (h *CartHandler) SyncCart(c echo.Context) error {
	ctx := c.Request().Context()

	ident := h.identity(c)
	if ident == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "login required")
	}

	merged, err := h.Engine.Sync(ctx, mw.SessionID(c), *ident, mw.Locale(c))
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			h.Auth.Teardown(ctx, mw.SessionID(c))
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, merged)
}
