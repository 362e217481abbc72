// Package billing talks to Stripe: checkout sessions for credit packs, off-session
// auto-recharge charges and verified webhook processing.
package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"

	"leadgenBack/internal/models"
)

const (
	PurposeCreditPurchase = "credit_purchase"
	PurposeAutoRecharge   = "auto_recharge"
)

type Config struct {
	SecretKey        string
	WebhookSecret    string
	CreditPriceCents int64
	Currency         string
	SuccessURL       string
	CancelURL        string
}

type Client struct {
	api *client.API
	cfg Config
}

// NewClient builds a Stripe client. backends may be nil to use the Stripe API hosts.
func NewClient(cfg Config, backends *stripe.Backends) (*Client, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("billing: stripe secret key is required")
	}
	if cfg.CreditPriceCents <= 0 {
		return nil, fmt.Errorf("billing: credit price must be positive")
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &Client{api: client.New(cfg.SecretKey, backends), cfg: cfg}, nil
}

// CheckoutSession is what the dashboard needs to redirect the buyer.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession starts a hosted checkout for a credit pack. Credits are granted by
// the checkout.session.completed webhook, not here.
func (c *Client) CreateCheckoutSession(ctx context.Context, workspaceID string, credits int64, customerID *string) (CheckoutSession, error) {
	if credits <= 0 {
		return CheckoutSession{}, fmt.Errorf("billing: credits must be positive")
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.cfg.SuccessURL),
		CancelURL:         stripe.String(c.cfg.CancelURL),
		ClientReferenceID: stripe.String(workspaceID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(credits),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(c.cfg.Currency),
				UnitAmount: stripe.Int64(c.cfg.CreditPriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Lead credits"),
				},
			},
		}},
	}
	if customerID != nil && *customerID != "" {
		params.Customer = stripe.String(*customerID)
	}
	params.Context = ctx
	params.AddMetadata("workspace_id", workspaceID)
	params.AddMetadata("credits", strconv.FormatInt(credits, 10))
	params.AddMetadata("purpose", PurposeCreditPurchase)

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, wrapStripeError("create checkout session", err)
	}
	return CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ChargeAutoRecharge confirms an off-session PaymentIntent for the configured top-up.
// idempotencyKey makes retried job steps reuse the same intent.
func (c *Client) ChargeAutoRecharge(ctx context.Context, s models.AutoRechargeSettings, idempotencyKey string) (string, error) {
	if s.StripeCustomerID == "" || s.PaymentMethodID == "" {
		return "", fmt.Errorf("billing: auto-recharge for %s has no saved payment method", s.WorkspaceID)
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(s.Credits * c.cfg.CreditPriceCents),
		Currency:      stripe.String(c.cfg.Currency),
		Customer:      stripe.String(s.StripeCustomerID),
		PaymentMethod: stripe.String(s.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	params.AddMetadata("workspace_id", s.WorkspaceID)
	params.AddMetadata("credits", strconv.FormatInt(s.Credits, 10))
	params.AddMetadata("purpose", PurposeAutoRecharge)

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return "", wrapStripeError("charge auto-recharge", err)
	}
	return pi.ID, nil
}
