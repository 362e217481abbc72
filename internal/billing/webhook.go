package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"

	"leadgenBack/internal/models"
	"leadgenBack/internal/payouts"
)

const Provider = "stripe"

// EventStore remembers processed webhook events.
type EventStore interface {
	IsProcessed(ctx context.Context, id string) (bool, error)
	Record(ctx context.Context, ev models.WebhookEvent) (bool, error)
}

// Credits applies credit grants and auto-recharge state changes.
type Credits interface {
	Grant(ctx context.Context, workspaceID, kind string, amount int64, reference *string, note string) (models.CreditEntry, error)
	DisableAutoRecharge(ctx context.Context, workspaceID, reason string) error
}

// Commissions books and claws back partner commissions.
type Commissions interface {
	RecordCommission(ctx context.Context, workspaceID, sourceRef string, amountCents int64, currency string) (bool, error)
	Cancel(ctx context.Context, sourceRef string) (bool, error)
}

// Workspaces resolves a Stripe customer to its workspace.
type Workspaces interface {
	WorkspaceIDByCustomer(ctx context.Context, customerID string) (string, error)
}

type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// Outcome is what happened to one delivered event.
type Outcome struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type WebhookProcessor struct {
	Secret      string
	Events      EventStore
	Credits     Credits
	Commissions Commissions
	Workspaces  Workspaces
	Logger      Logger
	// OnResult is called once per non-duplicate event with the recorded status.
	OnResult func(eventType, status string)

	now func() time.Time
}

// Process verifies the payload and applies it once. The only error it returns is
// ErrInvalidSignature; processing failures are recorded on the event instead so the
// vendor still gets a success response.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.Secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := Outcome{EventID: ev.ID, Type: string(ev.Type)}

	seen, err := p.Events.IsProcessed(ctx, ev.ID)
	if err != nil {
		p.errorf("billing: check event %s: %v", ev.ID, err)
	}
	if seen {
		out.Duplicate = true
		out.Status = "duplicate"
		return out, nil
	}

	handled, herr := p.dispatch(ctx, ev)
	rec := models.WebhookEvent{ID: ev.ID, Provider: Provider, Type: string(ev.Type), ProcessedAt: p.clock().UTC()}
	switch {
	case herr != nil:
		msg := herr.Error()
		rec.Status = models.WebhookFailed
		rec.Error = &msg
		p.errorf("billing: event %s (%s) failed: %v", ev.ID, ev.Type, herr)
	case !handled:
		rec.Status = models.WebhookIgnored
	default:
		rec.Status = models.WebhookProcessed
	}
	out.Status = rec.Status

	inserted, err := p.Events.Record(ctx, rec)
	if err != nil {
		p.errorf("billing: record event %s: %v", ev.ID, err)
	} else if !inserted {
		out.Duplicate = true
		out.Status = "duplicate"
		return out, nil
	}
	if p.OnResult != nil {
		p.OnResult(string(ev.Type), rec.Status)
	}
	return out, nil
}

func (p *WebhookProcessor) dispatch(ctx context.Context, ev stripe.Event) (bool, error) {
	if ev.Data == nil {
		return false, nil
	}
	switch ev.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return true, fmt.Errorf("decode checkout session: %w", err)
		}
		return p.checkoutCompleted(ctx, s)
	case stripe.EventTypeInvoicePaid:
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return true, fmt.Errorf("decode invoice: %w", err)
		}
		return p.invoicePaid(ctx, inv)
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return true, fmt.Errorf("decode payment intent: %w", err)
		}
		if pi.Metadata["purpose"] != PurposeAutoRecharge {
			return false, nil
		}
		if ev.Type == stripe.EventTypePaymentIntentSucceeded {
			return true, p.autoRechargeSucceeded(ctx, pi)
		}
		return true, p.autoRechargeFailed(ctx, pi)
	case stripe.EventTypeChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return true, fmt.Errorf("decode charge: %w", err)
		}
		return true, p.chargeRefunded(ctx, ch)
	}
	return false, nil
}

func (p *WebhookProcessor) checkoutCompleted(ctx context.Context, s stripe.CheckoutSession) (bool, error) {
	if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return false, nil
	}
	workspaceID := s.Metadata["workspace_id"]
	if workspaceID == "" {
		workspaceID = s.ClientReferenceID
	}
	if workspaceID == "" {
		return true, errors.New("checkout session has no workspace")
	}

	if s.Metadata["purpose"] == PurposeCreditPurchase {
		credits, err := strconv.ParseInt(s.Metadata["credits"], 10, 64)
		if err != nil || credits <= 0 {
			return true, fmt.Errorf("checkout session %s: bad credits metadata %q", s.ID, s.Metadata["credits"])
		}
		ref := s.ID
		if _, err := p.Credits.Grant(ctx, workspaceID, models.CreditPurchase, credits, &ref, "checkout"); err != nil &&
			!errors.Is(err, models.ErrDuplicateRecord) {
			return true, fmt.Errorf("grant credits: %w", err)
		}
	}

	sourceRef := s.ID
	if s.PaymentIntent != nil && s.PaymentIntent.ID != "" {
		sourceRef = s.PaymentIntent.ID
	}
	return true, p.commission(ctx, workspaceID, sourceRef, s.AmountTotal, string(s.Currency))
}

func (p *WebhookProcessor) invoicePaid(ctx context.Context, inv stripe.Invoice) (bool, error) {
	workspaceID := inv.Metadata["workspace_id"]
	if workspaceID == "" && inv.Customer != nil && p.Workspaces != nil {
		id, err := p.Workspaces.WorkspaceIDByCustomer(ctx, inv.Customer.ID)
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return true, fmt.Errorf("resolve customer %s: %w", inv.Customer.ID, err)
		}
		workspaceID = id
	}
	if workspaceID == "" {
		return false, nil
	}
	return true, p.commission(ctx, workspaceID, inv.ID, inv.AmountPaid, string(inv.Currency))
}

func (p *WebhookProcessor) autoRechargeSucceeded(ctx context.Context, pi stripe.PaymentIntent) error {
	workspaceID := pi.Metadata["workspace_id"]
	credits, err := strconv.ParseInt(pi.Metadata["credits"], 10, 64)
	if workspaceID == "" || err != nil || credits <= 0 {
		return fmt.Errorf("payment intent %s: bad auto-recharge metadata", pi.ID)
	}
	ref := pi.ID
	if _, err := p.Credits.Grant(ctx, workspaceID, models.CreditAutoRecharge, credits, &ref, "auto-recharge"); err != nil &&
		!errors.Is(err, models.ErrDuplicateRecord) {
		return fmt.Errorf("grant credits: %w", err)
	}
	return nil
}

func (p *WebhookProcessor) autoRechargeFailed(ctx context.Context, pi stripe.PaymentIntent) error {
	workspaceID := pi.Metadata["workspace_id"]
	if workspaceID == "" {
		return fmt.Errorf("payment intent %s: missing workspace", pi.ID)
	}
	reason := "payment failed"
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		reason = pi.LastPaymentError.Msg
	}
	p.infof("billing: auto-recharge failed for workspace %s: %s", workspaceID, reason)
	return p.Credits.DisableAutoRecharge(ctx, workspaceID, reason)
}

func (p *WebhookProcessor) chargeRefunded(ctx context.Context, ch stripe.Charge) error {
	var refs []string
	if ch.Invoice != nil && ch.Invoice.ID != "" {
		refs = append(refs, ch.Invoice.ID)
	}
	if ch.PaymentIntent != nil && ch.PaymentIntent.ID != "" {
		refs = append(refs, ch.PaymentIntent.ID)
	}
	for _, ref := range refs {
		cancelled, err := p.Commissions.Cancel(ctx, ref)
		if err != nil {
			return fmt.Errorf("cancel commission %s: %w", ref, err)
		}
		if cancelled {
			p.infof("billing: commission for %s cancelled after refund of %s", ref, ch.ID)
		}
	}
	return nil
}

func (p *WebhookProcessor) commission(ctx context.Context, workspaceID, sourceRef string, amount int64, currency string) error {
	if p.Commissions == nil || amount <= 0 {
		return nil
	}
	_, err := p.Commissions.RecordCommission(ctx, workspaceID, sourceRef, amount, currency)
	if err != nil && !errors.Is(err, payouts.ErrDuplicateCommission) {
		return fmt.Errorf("record commission: %w", err)
	}
	return nil
}

func (p *WebhookProcessor) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

func (p *WebhookProcessor) infof(format string, args ...interface{}) {
	if p.Logger != nil {
		p.Logger.Infof(format, args...)
	}
}

func (p *WebhookProcessor) errorf(format string, args ...interface{}) {
	if p.Logger != nil {
		p.Logger.Errorf(format, args...)
	}
}
