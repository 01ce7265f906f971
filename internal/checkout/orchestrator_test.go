package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alhaqil/storefront/internal/backend"
	"github.com/alhaqil/storefront/internal/cart"
	"github.com/alhaqil/storefront/internal/models"
	"github.com/alhaqil/storefront/internal/store"
)

type fakeBackend struct {
	addresses   []backend.Address
	addressErr  error
	checkoutErr error
	checkouts   []backend.CheckoutRequest
	nextOrderID uint
	coupon      *backend.CouponResult
	couponErr   error
	couponTotal string
}

func (f *fakeBackend) Addresses(ctx context.Context, token string, customerID uint) ([]backend.Address, error) {
	if f.addressErr != nil {
		return nil, f.addressErr
	}
	return f.addresses, nil
}

func (f *fakeBackend) Checkout(ctx context.Context, token string, req backend.CheckoutRequest) (*backend.CheckoutResult, error) {
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	f.checkouts = append(f.checkouts, req)
	f.nextOrderID++
	return &backend.CheckoutResult{
		OrderID: f.nextOrderID, OrderCode: "ORD-1", Total: req.Total, Status: "new",
	}, nil
}

func (f *fakeBackend) ApplyCoupon(ctx context.Context, token string, customerID uint, code, total, locale string) (*backend.CouponResult, error) {
	if f.couponErr != nil {
		return nil, f.couponErr
	}
	f.couponTotal = total
	return f.coupon, nil
}

func (f *fakeBackend) calls() int { return len(f.checkouts) }

type fakeCart struct {
	lines      []models.CartLine
	clearCalls int
}

func (f *fakeCart) Items(sessionID string) ([]models.CartLine, error) { return f.lines, nil }

func (f *fakeCart) Clear(ctx context.Context, sessionID string, ident *cart.Identity, locale string) error {
	f.clearCalls++
	f.lines = nil
	return nil
}

type fakePayments struct {
	created     []SessionRequest
	session     *PaymentSession
	retrieveErr error
}

func (f *fakePayments) CreateSession(ctx context.Context, req SessionRequest) (string, error) {
	f.created = append(f.created, req)
	return "https://pay.example/session", nil
}

func (f *fakePayments) RetrieveSession(ctx context.Context, id string) (*PaymentSession, error) {
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	return f.session, nil
}

func newTestOrchestrator(t *testing.T, api *fakeBackend, engine *fakeCart, payments *fakePayments) (*Orchestrator, *store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.LastOrder{}, &models.CouponMarker{}))
	s := store.New(db)
	o := NewOrchestrator(s, api, engine, payments, nil, slog.Default(), "2.000", "kwd", "HQL")
	return o, s
}

func defaultAddr() []backend.Address {
	return []backend.Address{
		{ID: 1, Title: "Home", City: "Farwaniya", AddressLine: "Block 4, St 12", IsDefault: true},
		{ID: 2, Title: "Farm", City: "Wafra", AddressLine: "Plot 9"},
	}
}

func twoLines() []models.CartLine {
	return []models.CartLine{
		{ProductID: 1, NameEN: "Dates", NameAR: "تمر", Price: "12.345", Quantity: 1},
		{ProductID: 2, NameEN: "Seeds", Price: "1.000", Quantity: 2},
	}
}

var ident = cart.Identity{UserID: 42, Token: "tok"}

func TestGiftValidationBlocksBeforeNetwork(t *testing.T) {
	api := &fakeBackend{addresses: defaultAddr()}
	engine := &fakeCart{lines: twoLines()}
	o, _ := newTestOrchestrator(t, api, engine, &fakePayments{})

	_, err := o.Submit(context.Background(), "s1", ident, Submission{
		PaymentMethod: MethodCash,
		IsGift:        true,
		GiftFirstName: "Noor",
		GiftLastName:  "",
		GiftPhone:     "+96550001122",
		Locale:        "en",
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "gift_last_name")
	require.Zero(t, api.calls(), "validation failure must not reach the network")
}

func TestGiftPhoneValidation(t *testing.T) {
	api := &fakeBackend{addresses: defaultAddr()}
	o, _ := newTestOrchestrator(t, api, &fakeCart{lines: twoLines()}, &fakePayments{})

	_, err := o.Submit(context.Background(), "s1", ident, Submission{
		PaymentMethod: MethodCash,
		IsGift:        true,
		GiftFirstName: "Noor",
		GiftLastName:  "AlSabah",
		GiftPhone:     "12",
		Locale:        "en",
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "gift_phone")
}

func TestDefaultAddressRequired(t *testing.T) {
	api := &fakeBackend{addresses: []backend.Address{{ID: 2, AddressLine: "x"}}}
	o, _ := newTestOrchestrator(t, api, &fakeCart{lines: twoLines()}, &fakePayments{})

	_, err := o.Submit(context.Background(), "s1", ident, Submission{PaymentMethod: MethodCash, Locale: "en"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "address")
}

func TestEmptyAddressLineRejected(t *testing.T) {
	api := &fakeBackend{addresses: []backend.Address{{ID: 1, IsDefault: true, AddressLine: "  "}}}
	o, _ := newTestOrchestrator(t, api, &fakeCart{lines: twoLines()}, &fakePayments{})

	_, err := o.Submit(context.Background(), "s1", ident, Submission{PaymentMethod: MethodCash, Locale: "en"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCashCheckoutPlacesOrderAndClears(t *testing.T) {
	api := &fakeBackend{addresses: defaultAddr()}
	engine := &fakeCart{lines: twoLines()}
	o, s := newTestOrchestrator(t, api, engine, &fakePayments{})

	res, err := o.Submit(context.Background(), "s1", ident, Submission{PaymentMethod: MethodCash, Locale: "en"})
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	require.Empty(t, res.RedirectURL)

	require.Len(t, api.checkouts, 1)
	req := api.checkouts[0]
	require.Equal(t, uint(42), req.CustomerID)
	require.Equal(t, uint(1), req.AddressID)
	// 12.345 + 2*1.000, no coupon, no minor-unit conversion for cash.
	require.Equal(t, "14.345", req.Total)
	require.Equal(t, "2.000", req.DeliveryCost)
	require.Len(t, req.Items, 2)

	require.Equal(t, 1, engine.clearCalls)
	last, err := s.LastOrder("s1")
	require.NoError(t, err)
	require.Equal(t, "ORD-1", last.OrderCode)
}

func TestCashTotalUsesCouponFinalTotal(t *testing.T) {
	api := &fakeBackend{addresses: defaultAddr()}
	o, s := newTestOrchestrator(t, api, &fakeCart{lines: twoLines()}, &fakePayments{})
	require.NoError(t, s.SaveCoupon(&models.CouponMarker{SessionID: "s1", CouponID: 9, Code: "X", FinalTotal: "12.911"}))

	_, err := o.Submit(context.Background(), "s1", ident, Submission{PaymentMethod: MethodCash, Locale: "en"})
	require.NoError(t, err)
	require.Equal(t, "12.911", api.checkouts[0].Total)
	require.Equal(t, uint(9), api.checkouts[0].CouponID)

	// Coupon marker is consumed by a successful order.
	_, err = s.Coupon("s1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCardCheckoutBuildsDiscountedMinorUnits(t *testing.T) {
	api := &fakeBackend{addresses: defaultAddr()}
	engine := &fakeCart{lines: twoLines()}
	payments := &fakePayments{}
	o, s := newTestOrchestrator(t, api, engine, payments)

	// originalTotal = 14.345; coupon makes the factor exactly 0.9.
	require.NoError(t, s.SaveCoupon(&models.CouponMarker{SessionID: "s1", CouponID: 3, FinalTotal: "12.9105"}))

	res, err := o.Submit(context.Background(), "s1", ident, Submission{
		PaymentMethod: MethodCard, Email: "a@b.c", Locale: "ar",
	})
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/session", res.RedirectURL)
	require.Nil(t, res.Order)

	require.Len(t, payments.created, 1)
	req := payments.created[0]
	require.Equal(t, "kwd", req.Currency)
	require.Len(t, req.Lines, 3) // two products + shipping

	// 12.345 * 0.9 = 11.1105 -> 11.11 -> 11110 fils.
	require.Equal(t, int64(11110), req.Lines[0].UnitAmount)
	require.Equal(t, "تمر", req.Lines[0].Name, "arabic locale picks arabic names")
	// 1.000 * 0.9 = 0.90 -> 900 fils.
	require.Equal(t, int64(900), req.Lines[1].UnitAmount)
	// Flat shipping 2.000 -> 2000 fils, quantity 1.
	require.Equal(t, int64(2000), req.Lines[2].UnitAmount)
	require.Equal(t, uint(1), req.Lines[2].Quantity)

	// Replayable payload rides along as metadata.
	var payload backend.CheckoutRequest
	require.NoError(t, json.Unmarshal([]byte(req.Metadata["payload"]), &payload))
	require.Equal(t, uint(42), payload.CustomerID)
	require.Equal(t, "12.911", payload.Total)

	// Card submission must NOT clear the cart.
	require.Zero(t, engine.clearCalls)
	require.Zero(t, api.calls())
}

func TestFinalizeRequiresPaid(t *testing.T) {
	payments := &fakePayments{session: &PaymentSession{ID: "cs_1", Paid: false}}
	o, _ := newTestOrchestrator(t, &fakeBackend{}, &fakeCart{}, payments)

	_, err := o.Finalize(context.Background(), "s1", ident, "cs_1")
	require.ErrorIs(t, err, ErrNotPaid)
}

func TestFinalizeReplaysPayloadAndClears(t *testing.T) {
	payload := backend.CheckoutRequest{
		CustomerID: 42, AddressID: 1, Total: "12.911", OrderNumber: "HQL-1",
		Items: []backend.CheckoutItem{{ProductID: 1, Price: "12.345", Quantity: 1}},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	api := &fakeBackend{}
	engine := &fakeCart{lines: twoLines()}
	payments := &fakePayments{session: &PaymentSession{
		ID: "cs_1", Paid: true, Metadata: map[string]string{"payload": string(raw)},
	}}
	o, s := newTestOrchestrator(t, api, engine, payments)

	res, err := o.Finalize(context.Background(), "s1", ident, "cs_1")
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	require.Len(t, api.checkouts, 1)
	require.Equal(t, "HQL-1", api.checkouts[0].OrderNumber)
	require.Equal(t, 1, engine.clearCalls)

	last, err := s.LastOrder("s1")
	require.NoError(t, err)
	require.Equal(t, res.Order.OrderID, last.OrderID)
}

func TestFinalizeReplayFailureIsGeneric(t *testing.T) {
	payload, _ := json.Marshal(backend.CheckoutRequest{CustomerID: 1})
	api := &fakeBackend{checkoutErr: errors.New("upstream 500")}
	payments := &fakePayments{session: &PaymentSession{
		ID: "cs_1", Paid: true, Metadata: map[string]string{"payload": string(payload)},
	}}
	o, _ := newTestOrchestrator(t, api, &fakeCart{}, payments)

	_, err := o.Finalize(context.Background(), "s1", ident, "cs_1")
	require.ErrorIs(t, err, ErrFinalize)
}

func TestApplyCouponPersistsMarker(t *testing.T) {
	api := &fakeBackend{coupon: &backend.CouponResult{CouponID: 7, Code: "HARVEST10", FinalTotal: "12.911"}}
	o, s := newTestOrchestrator(t, api, &fakeCart{lines: twoLines()}, &fakePayments{})

	res, err := o.ApplyCoupon(context.Background(), "s1", ident, "HARVEST10", "", "en")
	require.NoError(t, err)
	require.Equal(t, "12.911", res.FinalTotal)
	// Omitted total is recomputed from the cart.
	require.Equal(t, "14.345", api.couponTotal)

	marker, err := s.Coupon("s1")
	require.NoError(t, err)
	require.Equal(t, uint(7), marker.CouponID)
	require.Equal(t, "12.911", marker.FinalTotal)
}

func TestApplyCouponRejectionLeavesNoMarker(t *testing.T) {
	api := &fakeBackend{couponErr: errors.New("coupon expired")}
	o, s := newTestOrchestrator(t, api, &fakeCart{lines: twoLines()}, &fakePayments{})

	_, err := o.ApplyCoupon(context.Background(), "s1", ident, "STALE", "14.345", "en")
	require.Error(t, err)

	_, err = s.Coupon("s1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestEmptyCart(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeBackend{addresses: defaultAddr()}, &fakeCart{}, &fakePayments{})
	_, err := o.Submit(context.Background(), "s1", ident, Submission{PaymentMethod: MethodCash, Locale: "en"})
	require.ErrorIs(t, err, ErrEmptyCart)
}
