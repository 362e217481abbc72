package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"leadgenBack/internal/billing"
	"leadgenBack/internal/models"
)

type AutoRechargePayload struct {
	WorkspaceID string `json:"workspace_id"`
}

// AutoRechargeHandler charges the saved card of a workspace whose balance dropped below
// its threshold. Credits arrive later through the payment_intent.succeeded webhook.
type AutoRechargeHandler struct {
	Credits CreditStore
	Charger Charger
	Logger  Logger

	now func() time.Time
}

func (h *AutoRechargeHandler) Handle(ctx context.Context, job Job, steps *Steps) error {
	var p AutoRechargePayload
	if err := job.Decode(&p); err != nil {
		return err
	}

	_, err := steps.Step(ctx, "charge", func(ctx context.Context) ([]byte, error) {
		settings, err := h.Credits.GetAutoRecharge(ctx, p.WorkspaceID)
		if errors.Is(err, models.ErrNotFound) {
			return []byte("skipped"), nil
		}
		if err != nil {
			return nil, err
		}
		if !settings.Enabled {
			return []byte("skipped"), nil
		}
		balance, err := h.Credits.Balance(ctx, p.WorkspaceID)
		if err != nil {
			return nil, err
		}
		if balance.Balance >= settings.Threshold {
			return []byte("skipped"), nil
		}

		if err := h.Credits.MarkAutoRechargeAttempt(ctx, p.WorkspaceID, h.clock().UTC()); err != nil {
			return nil, err
		}
		intentID, err := h.Charger.ChargeAutoRecharge(ctx, settings, "auto_recharge:"+job.ID)
		if err != nil {
			var se *billing.StripeError
			if errors.As(err, &se) && se.StatusCode >= http.StatusBadRequest && se.StatusCode < http.StatusInternalServerError {
				if derr := h.Credits.DisableAutoRecharge(ctx, p.WorkspaceID, se.Message); derr != nil {
					return nil, derr
				}
				return nil, Permanent(err)
			}
			return nil, err
		}
		if h.Logger != nil {
			h.Logger.Infof("jobs: auto-recharge for %s charged %d credits (%s)", p.WorkspaceID, settings.Credits, intentID)
		}
		return []byte(intentID), nil
	})
	if err != nil {
		return fmt.Errorf("auto-recharge %s: %w", p.WorkspaceID, err)
	}
	return nil
}

func (h *AutoRechargeHandler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}
