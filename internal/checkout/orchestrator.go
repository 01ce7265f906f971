package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/shopspring/decimal"

	"github.com/alhaqil/storefront/internal/backend"
	"github.com/alhaqil/storefront/internal/cart"
	"github.com/alhaqil/storefront/internal/events"
	"github.com/alhaqil/storefront/internal/models"
	"github.com/alhaqil/storefront/internal/money"
	"github.com/alhaqil/storefront/internal/store"
)

const (
	MethodCash = "cash"
	MethodCard = "card"

	// metadataPayloadKey carries the serialized checkout payload on the
	// payment session for replay after the processor confirms payment.
	metadataPayloadKey = "payload"

	// defaultRegion resolves national phone numbers during validation.
	defaultRegion = "KW"
)

var (
	ErrEmptyCart = errors.New("checkout: cart is empty")
	ErrNotPaid   = errors.New("checkout: payment not completed")
	ErrFinalize  = errors.New("checkout: failed to process order")
)

// ValidationError reports field-scoped precondition failures. Nothing has
// been sent to the network when one is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	return "checkout: validation failed: " + strings.Join(parts, "; ")
}

// Backend is the slice of the commerce API checkout needs.
type Backend interface {
	Addresses(ctx context.Context, token string, customerID uint) ([]backend.Address, error)
	Checkout(ctx context.Context, token string, req backend.CheckoutRequest) (*backend.CheckoutResult, error)
	ApplyCoupon(ctx context.Context, token string, customerID uint, code, total, locale string) (*backend.CouponResult, error)
}

// CartEngine is the cart surface checkout drives.
type CartEngine interface {
	Items(sessionID string) ([]models.CartLine, error)
	Clear(ctx context.Context, sessionID string, ident *cart.Identity, locale string) error
}

// PaymentLine is one hosted-session line item, priced in minor units.
type PaymentLine struct {
	ProductID   int
	Name        string
	Description string
	Image       string
	UnitAmount  int64
	Quantity    uint
}

// SessionRequest is what the payment client turns into a hosted session.
type SessionRequest struct {
	Lines         []PaymentLine
	CustomerEmail string
	OrderNumber   string
	Currency      string
	Locale        string
	Metadata      map[string]string
}

// PaymentSession is a retrieved hosted session.
type PaymentSession struct {
	ID       string
	Paid     bool
	Metadata map[string]string
}

// Payments is the hosted-checkout processor surface.
type Payments interface {
	CreateSession(ctx context.Context, req SessionRequest) (string, error)
	RetrieveSession(ctx context.Context, id string) (*PaymentSession, error)
}

// Submission is one checkout attempt as entered by the user.
type Submission struct {
	PaymentMethod string
	Email         string
	IsGift        bool
	GiftFirstName string
	GiftLastName  string
	GiftPhone     string
	Locale        string
}

// Result is either a placed order (cash) or a redirect to the hosted
// payment page (card).
type Result struct {
	Order       *backend.CheckoutResult `json:"order,omitempty"`
	RedirectURL string                  `json:"redirect_url,omitempty"`
}

// Orchestrator turns {cart, default address, coupon, gift fields, payment
// method} into an order or a payment redirect with deterministic rounding.
type Orchestrator struct {
	store    *store.Store
	api      Backend
	cart     CartEngine
	payments Payments
	events   events.Publisher
	log      *slog.Logger

	ShippingRate string
	Currency     string
	OrderPrefix  string

	now func() time.Time
}

func NewOrchestrator(s *store.Store, api Backend, cartEngine CartEngine, payments Payments, pub events.Publisher, log *slog.Logger, shippingRate, currency, orderPrefix string) *Orchestrator {
	return &Orchestrator{
		store: s, api: api, cart: cartEngine, payments: payments,
		events: pub, log: log,
		ShippingRate: shippingRate, Currency: currency, OrderPrefix: orderPrefix,
		now: time.Now,
	}
}

// Submit runs one checkout. Gift validation happens before any network
// call; the default-address precondition needs the address book and is
// checked right after.
func (o *Orchestrator) Submit(ctx context.Context, sessionID string, ident cart.Identity, sub Submission) (*Result, error) {
	if err := validateGift(sub); err != nil {
		return nil, err
	}

	lines, err := o.cart.Items(sessionID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	addr, err := o.defaultAddress(ctx, ident)
	if err != nil {
		return nil, err
	}

	originalTotal := cartTotal(lines)
	finalTotal := originalTotal
	var couponID uint
	if marker, err := o.store.Coupon(sessionID); err == nil {
		finalTotal = money.Parse(marker.FinalTotal)
		couponID = marker.CouponID
	}

	orderNumber := fmt.Sprintf("%s-%d", o.OrderPrefix, o.now().UnixMilli())
	payload := backend.CheckoutRequest{
		CustomerID:    ident.UserID,
		AddressID:     addr.ID,
		Items:         checkoutItems(lines),
		IsGift:        sub.IsGift,
		GiftFirstName: sub.GiftFirstName,
		GiftLastName:  sub.GiftLastName,
		GiftPhone:     sub.GiftPhone,
		CouponID:      couponID,
		Total:         money.String(finalTotal),
		DeliveryCost:  o.ShippingRate,
		OrderNumber:   orderNumber,
		PaymentMethod: sub.PaymentMethod,
		Language:      sub.Locale,
	}

	switch sub.PaymentMethod {
	case MethodCard:
		return o.submitCard(ctx, sub, lines, originalTotal, finalTotal, orderNumber, payload)
	default:
		return o.submitCash(ctx, sessionID, ident, sub.Locale, payload)
	}
}

// submitCash places the order directly. The order stands even if the
// follow-up cart clear fails; the stale cart is only logged.
func (o *Orchestrator) submitCash(ctx context.Context, sessionID string, ident cart.Identity, locale string, payload backend.CheckoutRequest) (*Result, error) {
	res, err := o.api.Checkout(ctx, ident.Token, payload)
	if err != nil {
		return nil, err
	}
	o.finish(ctx, sessionID, &ident, locale, res)
	return &Result{Order: res}, nil
}

// submitCard creates the hosted session with the serialized payload in its
// metadata. The cart is NOT cleared here; an abandoned payment keeps it.
func (o *Orchestrator) submitCard(ctx context.Context, sub Submission, lines []models.CartLine, originalTotal, finalTotal decimal.Decimal, orderNumber string, payload backend.CheckoutRequest) (*Result, error) {
	factor := money.DiscountFactor(finalTotal, originalTotal)

	paymentLines := make([]PaymentLine, 0, len(lines)+1)
	for _, l := range lines {
		discounted := money.Round2(money.Parse(l.Price).Mul(factor))
		paymentLines = append(paymentLines, PaymentLine{
			ProductID:   l.ProductID,
			Name:        localized(l.NameEN, l.NameAR, sub.Locale),
			Description: localized(l.DescriptionEN, l.DescriptionAR, sub.Locale),
			Image:       l.Image,
			UnitAmount:  money.MinorUnits(discounted),
			Quantity:    l.Quantity,
		})
	}
	// Flat shipping as its own line, never discounted.
	paymentLines = append(paymentLines, PaymentLine{
		Name:       localized("Delivery", "التوصيل", sub.Locale),
		UnitAmount: money.MinorUnits(money.Round2(money.Parse(o.ShippingRate))),
		Quantity:   1,
	})

	serialized, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("checkout: serialize payload: %w", err)
	}

	url, err := o.payments.CreateSession(ctx, SessionRequest{
		Lines:         paymentLines,
		CustomerEmail: sub.Email,
		OrderNumber:   orderNumber,
		Currency:      o.Currency,
		Locale:        sub.Locale,
		Metadata:      map[string]string{metadataPayloadKey: string(serialized)},
	})
	if err != nil {
		return nil, err
	}
	return &Result{RedirectURL: url}, nil
}

// ApplyCoupon validates the code upstream against the current cart total
// and remembers the marker the next Submit consumes. An omitted total is
// recomputed from the cart.
func (o *Orchestrator) ApplyCoupon(ctx context.Context, sessionID string, ident cart.Identity, code, total, locale string) (*backend.CouponResult, error) {
	if total == "" {
		lines, err := o.cart.Items(sessionID)
		if err != nil {
			return nil, err
		}
		total = money.String(cartTotal(lines))
	}

	res, err := o.api.ApplyCoupon(ctx, ident.Token, ident.UserID, code, total, locale)
	if err != nil {
		return nil, err
	}
	if err := o.store.SaveCoupon(&models.CouponMarker{
		SessionID:  sessionID,
		CouponID:   res.CouponID,
		Code:       res.Code,
		FinalTotal: res.FinalTotal,
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Finalize completes a card order after the processor redirects back:
// verify the session is paid, replay the attached payload against the
// backend, then clear local state.
func (o *Orchestrator) Finalize(ctx context.Context, sessionID string, ident cart.Identity, paymentSessionID string) (*Result, error) {
	sess, err := o.payments.RetrieveSession(ctx, paymentSessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Paid {
		return nil, ErrNotPaid
	}

	var payload backend.CheckoutRequest
	if err := json.Unmarshal([]byte(sess.Metadata[metadataPayloadKey]), &payload); err != nil {
		o.log.Error("finalize_payload_malformed", "payment_session", sess.ID, "error", err)
		return nil, ErrFinalize
	}

	res, err := o.api.Checkout(ctx, ident.Token, payload)
	if err != nil {
		o.log.Error("finalize_replay_failed", "payment_session", sess.ID, "error", err)
		return nil, ErrFinalize
	}

	o.finish(ctx, sessionID, &ident, payload.Language, res)
	return &Result{Order: res}, nil
}

// finish persists the success-page summary and clears cart and coupon.
// Failures here never undo the placed order.
func (o *Orchestrator) finish(ctx context.Context, sessionID string, ident *cart.Identity, locale string, res *backend.CheckoutResult) {
	if err := o.store.SaveLastOrder(&models.LastOrder{
		SessionID: sessionID,
		OrderID:   res.OrderID,
		OrderCode: res.OrderCode,
		Total:     res.Total,
		Status:    res.Status,
		PlacedAt:  o.now().Unix(),
	}); err != nil {
		o.log.Error("last_order_save_failed", "order_id", res.OrderID, "error", err)
	}
	if err := o.cart.Clear(ctx, sessionID, ident, locale); err != nil {
		o.log.Warn("post_order_cart_clear_failed", "order_id", res.OrderID, "error", err)
	}
	if err := o.store.ClearCoupon(sessionID); err != nil {
		o.log.Warn("coupon_clear_failed", "error", err)
	}
	if o.events != nil {
		if err := o.events.PublishEvent(ctx, events.TopicOrder, sessionID, map[string]any{
			"type":       "order_placed",
			"order_id":   res.OrderID,
			"order_code": res.OrderCode,
			"total":      res.Total,
		}); err != nil {
			o.log.Warn("order_event_publish_failed", "error", err)
		}
	}
}

func (o *Orchestrator) defaultAddress(ctx context.Context, ident cart.Identity) (*backend.Address, error) {
	addrs, err := o.api.Addresses(ctx, ident.Token, ident.UserID)
	if err != nil {
		return nil, err
	}
	for i := range addrs {
		if addrs[i].IsDefault {
			if strings.TrimSpace(addrs[i].AddressLine) == "" {
				return nil, &ValidationError{Fields: map[string]string{
					"address": "default address has no address line",
				}}
			}
			return &addrs[i], nil
		}
	}
	return nil, &ValidationError{Fields: map[string]string{
		"address": "a default address is required",
	}}
}

func validateGift(sub Submission) error {
	if !sub.IsGift {
		return nil
	}
	fields := map[string]string{}
	if strings.TrimSpace(sub.GiftFirstName) == "" {
		fields["gift_first_name"] = "recipient first name is required"
	}
	if strings.TrimSpace(sub.GiftLastName) == "" {
		fields["gift_last_name"] = "recipient last name is required"
	}
	if num, err := phonenumbers.Parse(sub.GiftPhone, defaultRegion); err != nil || !phonenumbers.IsValidNumber(num) {
		fields["gift_phone"] = "a valid recipient phone number is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func cartTotal(lines []models.CartLine) decimal.Decimal {
	ml := make([]money.Line, len(lines))
	for i, l := range lines {
		ml[i] = money.Line{Price: l.Price, Quantity: l.Quantity}
	}
	return money.Total(ml)
}

func checkoutItems(lines []models.CartLine) []backend.CheckoutItem {
	items := make([]backend.CheckoutItem, len(lines))
	for i, l := range lines {
		items[i] = backend.CheckoutItem{ProductID: l.ProductID, Price: l.Price, Quantity: l.Quantity}
	}
	return items
}

func localized(en, ar, locale string) string {
	if locale == "ar" && ar != "" {
		return ar
	}
	return en
}
