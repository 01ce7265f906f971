package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripePayments creates and retrieves hosted checkout sessions. The
// storefront never touches card data; the user is redirected to the
// processor's page and back.
type StripePayments struct {
	api        *client.API
	successURL string
	cancelURL  string
}

func NewStripePayments(secretKey, successURL, cancelURL string) *StripePayments {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripePayments{api: api, successURL: successURL, cancelURL: cancelURL}
}

func (p *StripePayments) CreateSession(ctx context.Context, req SessionRequest) (string, error) {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, l := range req.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(l.Name),
			Metadata: map[string]string{"id": strconv.Itoa(l.ProductID)},
		}
		if l.Description != "" {
			product.Description = stripe.String(l.Description)
		}
		if l.Image != "" {
			product.Images = stripe.StringSlice([]string{l.Image})
		}
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(l.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				UnitAmount:  stripe.Int64(l.UnitAmount),
				ProductData: product,
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         items,
		CustomerEmail:     stripe.String(req.CustomerEmail),
		SuccessURL:        stripe.String(localeURL(p.successURL, req.Locale) + "&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(localeURL(p.cancelURL, req.Locale)),
		ClientReferenceID: stripe.String(req.OrderNumber),
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("payment session create failed: %w", err)
	}
	return sess.URL, nil
}

func (p *StripePayments) RetrieveSession(ctx context.Context, id string) (*PaymentSession, error) {
	sess, err := p.api.CheckoutSessions.Get(id, &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("payment session retrieve failed: %w", err)
	}
	return &PaymentSession{
		ID:       sess.ID,
		Paid:     sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Metadata: sess.Metadata,
	}, nil
}

func localeURL(base, locale string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "locale=" + locale
}
