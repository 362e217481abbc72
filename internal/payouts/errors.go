package payouts

import "errors"

var (
	// ErrNotFound indicates missing partners, commissions or payouts.
	ErrNotFound            = errors.New("payouts: not found")
	ErrDuplicateCommission = errors.New("payouts: commission already recorded for source")
	ErrDuplicatePayout     = errors.New("payouts: payout already exists for this week")
	ErrBelowThreshold      = errors.New("payouts: payable total below minimum")
	ErrInvalidTransition   = errors.New("payouts: invalid commission status transition")
)
