package models

import "time"

type Workspace struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Plan                string     `json:"plan"`
	APIKeyHash          string     `json:"-"`
	ReferredByPartnerID *string    `json:"referred_by_partner_id,omitempty"`
	StripeCustomerID    *string    `json:"stripe_customer_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

// AutoRechargeSettings controls off-session credit top-ups for a workspace.
type AutoRechargeSettings struct {
	WorkspaceID      string     `json:"workspace_id"`
	Enabled          bool       `json:"enabled"`
	Threshold        int64      `json:"threshold" validate:"gte=0"`
	Credits          int64      `json:"credits" validate:"gt=0"`
	StripeCustomerID string     `json:"stripe_customer_id"`
	PaymentMethodID  string     `json:"payment_method_id"`
	LastAttemptAt    *time.Time `json:"last_attempt_at,omitempty"`
	LastError        *string    `json:"last_error,omitempty"`
}
