package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leadgenBack/internal/billing"
	"leadgenBack/internal/jobs"
	"leadgenBack/internal/models"
	"leadgenBack/internal/realtime"
)

const (
	MinCheckoutCredits = 10
	MaxCheckoutCredits = 100000

	// autoRechargeCooldown keeps the sweep from charging a card again while the webhook
	// for the previous charge is still in flight.
	autoRechargeCooldown = time.Hour
)

// Checkout opens hosted Stripe payment pages.
type Checkout interface {
	CreateCheckoutSession(ctx context.Context, workspaceID string, credits int64, customerID *string) (billing.CheckoutSession, error)
}

type CreditService struct {
	Credits    CreditStore
	Workspaces WorkspaceStore
	Billing    Checkout
	Jobs       Enqueuer
	Publisher  Publisher
	Logger     Logger

	now func() time.Time
}

func (s *CreditService) Balance(ctx context.Context, workspaceID string) (models.CreditBalance, error) {
	return s.Credits.Balance(ctx, workspaceID)
}

func (s *CreditService) Ledger(ctx context.Context, workspaceID string, limit, offset int) ([]models.CreditEntry, error) {
	return s.Credits.Ledger(ctx, workspaceID, limit, offset)
}

// Checkout starts a credit purchase. Credits are granted by the
// checkout.session.completed webhook, not here.
func (s *CreditService) Checkout(ctx context.Context, workspaceID string, credits int64) (billing.CheckoutSession, error) {
	if credits < MinCheckoutCredits || credits > MaxCheckoutCredits {
		return billing.CheckoutSession{}, fmt.Errorf("%w: credits must be between %d and %d",
			models.ErrInvalidInput, MinCheckoutCredits, MaxCheckoutCredits)
	}
	if s.Billing == nil {
		return billing.CheckoutSession{}, fmt.Errorf("checkout: %w", models.ErrFeatureDisabled)
	}
	var customer *string
	if s.Workspaces != nil {
		ws, err := s.Workspaces.Get(ctx, workspaceID)
		if err != nil {
			return billing.CheckoutSession{}, err
		}
		customer = ws.StripeCustomerID
	}
	return s.Billing.CreateCheckoutSession(ctx, workspaceID, credits, customer)
}

func (s *CreditService) AutoRecharge(ctx context.Context, workspaceID string) (models.AutoRechargeSettings, error) {
	return s.Credits.GetAutoRecharge(ctx, workspaceID)
}

// UpsertAutoRecharge saves the top-up rule. Enabling it requires a saved Stripe
// customer and payment method; the customer is also linked to the workspace so invoices
// can be attributed.
func (s *CreditService) UpsertAutoRecharge(ctx context.Context, workspaceID string, in models.AutoRechargeSettings) (models.AutoRechargeSettings, error) {
	in.WorkspaceID = workspaceID
	in.StripeCustomerID = strings.TrimSpace(in.StripeCustomerID)
	in.PaymentMethodID = strings.TrimSpace(in.PaymentMethodID)
	if in.Threshold < 0 || in.Credits < MinCheckoutCredits || in.Credits > MaxCheckoutCredits {
		return models.AutoRechargeSettings{}, fmt.Errorf("%w: threshold must be >= 0 and credits between %d and %d",
			models.ErrInvalidInput, MinCheckoutCredits, MaxCheckoutCredits)
	}
	if in.Enabled && (in.StripeCustomerID == "" || in.PaymentMethodID == "") {
		return models.AutoRechargeSettings{}, fmt.Errorf("%w: a saved payment method is required", models.ErrInvalidInput)
	}
	if err := s.Credits.UpsertAutoRecharge(ctx, in); err != nil {
		return models.AutoRechargeSettings{}, err
	}
	if in.StripeCustomerID != "" && s.Workspaces != nil {
		if err := s.Workspaces.SetStripeCustomer(ctx, workspaceID, in.StripeCustomerID); err != nil {
			return models.AutoRechargeSettings{}, err
		}
	}
	return s.Credits.GetAutoRecharge(ctx, workspaceID)
}

// Grant adds credits and notifies the workspace. It satisfies billing.Credits.
func (s *CreditService) Grant(ctx context.Context, workspaceID, kind string, amount int64, reference *string, note string) (models.CreditEntry, error) {
	entry, err := s.Credits.Grant(ctx, workspaceID, kind, amount, reference, note)
	if err != nil {
		return models.CreditEntry{}, err
	}
	s.publishBalance(workspaceID, entry.BalanceAfter)
	return entry, nil
}

// Spend debits credits for a workspace action.
func (s *CreditService) Spend(ctx context.Context, workspaceID string, amount int64, reference *string, note string) (models.CreditEntry, error) {
	entry, err := s.Credits.Debit(ctx, workspaceID, models.CreditSpend, amount, reference, note)
	if err != nil {
		return models.CreditEntry{}, err
	}
	s.publishBalance(workspaceID, entry.BalanceAfter)
	return entry, nil
}

func (s *CreditService) DisableAutoRecharge(ctx context.Context, workspaceID, reason string) error {
	if s.Logger != nil {
		s.Logger.Infof("credits: auto-recharge disabled for %s: %s", workspaceID, reason)
	}
	return s.Credits.DisableAutoRecharge(ctx, workspaceID, reason)
}

// EnqueueDueAutoRecharges queues a recharge job for every workspace below its threshold
// that was not attempted within the cooldown. It returns the number of jobs queued.
func (s *CreditService) EnqueueDueAutoRecharges(ctx context.Context) (int, error) {
	due, err := s.Credits.DueAutoRecharges(ctx, s.clock().Add(-autoRechargeCooldown))
	if err != nil {
		return 0, fmt.Errorf("list due auto-recharges: %w", err)
	}
	queued := 0
	for _, ws := range due {
		if _, err := s.Jobs.Enqueue(ctx, jobs.TypeAutoRecharge, jobs.AutoRechargePayload{WorkspaceID: ws}); err != nil {
			return queued, fmt.Errorf("enqueue auto-recharge for %s: %w", ws, err)
		}
		queued++
	}
	return queued, nil
}

func (s *CreditService) publishBalance(workspaceID string, balance int64) {
	if s.Publisher == nil {
		return
	}
	now := s.clock().UTC()
	s.Publisher.Publish(workspaceID, realtime.EventCreditsUpdated, models.CreditBalance{
		WorkspaceID: workspaceID,
		Balance:     balance,
		UpdatedAt:   &now,
	})
}

func (s *CreditService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
