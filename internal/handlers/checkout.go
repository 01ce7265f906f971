package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alhaqil/storefront/internal/auth"
	"github.com/alhaqil/storefront/internal/backend"
	"github.com/alhaqil/storefront/internal/cart"
	"github.com/alhaqil/storefront/internal/checkout"
	"github.com/alhaqil/storefront/internal/logging"
	mw "github.com/alhaqil/storefront/internal/middleware"
	"github.com/alhaqil/storefront/internal/store"
)

type CheckoutHandler struct {
	Orchestrator *checkout.Orchestrator
	Auth         *auth.Manager
	Store        *store.Store
}

func (h *CheckoutHandler) Submit(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout_submit")

	sess := mw.AuthSession(c)

	var req struct {
		PaymentMethod string `json:"payment_method"`
		Email         string `json:"email"`
		IsGift        bool   `json:"is_gift"`
		GiftFirstName string `json:"gift_first_name"`
		GiftLastName  string `json:"gift_last_name"`
		GiftPhone     string `json:"gift_phone"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Orchestrator.Submit(ctx, mw.SessionID(c), cart.Identity{UserID: sess.UserID, Token: sess.Token}, checkout.Submission{
		PaymentMethod: req.PaymentMethod,
		Email:         req.Email,
		IsGift:        req.IsGift,
		GiftFirstName: req.GiftFirstName,
		GiftLastName:  req.GiftLastName,
		GiftPhone:     req.GiftPhone,
		Locale:        mw.Locale(c),
	})
	if err != nil {
		var verr *checkout.ValidationError
		switch {
		case errors.As(err, &verr):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"errors": verr.Fields})
		case errors.Is(err, checkout.ErrEmptyCart):
			return echo.NewHTTPError(http.StatusBadRequest, "cart is empty")
		case errors.Is(err, backend.ErrUnauthorized):
			h.Auth.Teardown(ctx, mw.SessionID(c))
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}
		l.Error("checkout_failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, remoteMessage(err))
	}

	l.Info("checkout_submitted", "user_id", sess.UserID, "card", res.RedirectURL != "")
	return c.JSON(http.StatusOK, res)
}

// Confirm finalizes a card order after the processor redirects back with
// its session id.
func (h *CheckoutHandler) Confirm(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout_confirm")

	sess := mw.AuthSession(c)
	paymentSessionID := c.QueryParam("session_id")
	if paymentSessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	res, err := h.Orchestrator.Finalize(ctx, mw.SessionID(c), cart.Identity{UserID: sess.UserID, Token: sess.Token}, paymentSessionID)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrNotPaid):
			return echo.NewHTTPError(http.StatusPaymentRequired, "payment not completed")
		case errors.Is(err, checkout.ErrFinalize):
			return echo.NewHTTPError(http.StatusBadGateway, "failed to process order")
		case errors.Is(err, backend.ErrUnauthorized):
			h.Auth.Teardown(ctx, mw.SessionID(c))
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}
		l.Error("checkout_confirm_failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, remoteMessage(err))
	}

	l.Info("checkout_confirmed", "order_id", res.Order.OrderID)
	return c.JSON(http.StatusOK, res)
}

// LastOrder serves the success-page summary persisted after checkout.
func (h *CheckoutHandler) LastOrder(c echo.Context) error {
	order, err := h.Store.LastOrder(mw.SessionID(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no recent order")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, order)
}

// ApplyCoupon validates a coupon upstream and remembers it for the session.
func (h *CheckoutHandler) ApplyCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon_apply")

	sess := mw.AuthSession(c)

	var req struct {
		Code  string `json:"code"`
		Total string `json:"total"`
	}
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "coupon code is required")
	}

	res, err := h.Orchestrator.ApplyCoupon(ctx, mw.SessionID(c), cart.Identity{UserID: sess.UserID, Token: sess.Token}, req.Code, req.Total, mw.Locale(c))
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			h.Auth.Teardown(ctx, mw.SessionID(c))
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}
		l.Warn("coupon_apply_failed", "code", req.Code, "error", err)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, remoteMessage(err))
	}
	return c.JSON(http.StatusOK, res)
}

// RemoveCoupon drops the session's coupon marker.
func (h *CheckoutHandler) RemoveCoupon(c echo.Context) error {
	if err := h.Store.ClearCoupon(mw.SessionID(c)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "coupon removed"})
}

func remoteMessage(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "request failed"
}
