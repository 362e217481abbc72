// Package payouts implements partner commissions: a holdback window after creation,
// release to payable, weekly aggregation into payouts and refund clawbacks.
package payouts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Commission statuses.
const (
	StatusPendingHoldback = "pending_holdback"
	StatusPayable         = "payable"
	StatusPaid            = "paid"
	StatusCancelled       = "cancelled"
)

var transitions = map[string]map[string]struct{}{
	StatusPendingHoldback: {StatusPayable: {}, StatusCancelled: {}},
	StatusPayable:         {StatusPaid: {}, StatusCancelled: {}},
}

// CanTransition reports whether a commission may move from one status to another.
func CanTransition(from, to string) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

type Partner struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	RateBps   int       `json:"rate_bps" validate:"gte=0,lte=10000"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPartner is the input to CreatePartner. A nil RateBps takes the configured default,
// an explicit 0 creates a partner that earns nothing.
type NewPartner struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	RateBps *int   `json:"rate_bps" validate:"omitempty,gte=0,lte=10000"`
}

type Commission struct {
	ID          string     `json:"id"`
	PartnerID   string     `json:"partner_id"`
	WorkspaceID string     `json:"workspace_id"`
	SourceRef   string     `json:"source_ref"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	PayableAt   time.Time  `json:"payable_at"`
	PayoutID    *string    `json:"payout_id,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

type Payout struct {
	ID             string    `json:"id"`
	PartnerID      string    `json:"partner_id"`
	WeekStart      time.Time `json:"week_start"`
	IdempotencyKey string    `json:"idempotency_key"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
	Commissions    int       `json:"commissions"`
	CreatedAt      time.Time `json:"created_at"`
}

// PartnerTotal is the sum of payable commissions for one partner.
type PartnerTotal struct {
	Partner     Partner
	AmountCents int64
	Count       int
}

// CommissionFor returns rateBps basis points of amountCents, rounded half-up to a cent.
func CommissionFor(amountCents int64, rateBps int) int64 {
	if amountCents <= 0 || rateBps <= 0 {
		return 0
	}
	return decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(int64(rateBps))).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()
}

// IsPayable reports whether a commission still in holdback has waited long enough.
func IsPayable(c Commission, now time.Time, holdback time.Duration) bool {
	if c.Status != StatusPendingHoldback {
		return false
	}
	return now.Sub(c.CreatedAt) >= holdback
}

// WeekStart returns Monday 00:00 UTC of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	u := t.UTC()
	offset := (int(u.Weekday()) + 6) % 7
	y, m, d := u.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IdempotencyKey identifies the single payout a partner may receive for a week.
func IdempotencyKey(partnerID string, weekStart time.Time) string {
	return partnerID + "_" + weekStart.UTC().Format("2006-01-02")
}
