package models

import "time"

const (
	CreditPurchase            = "purchase"
	CreditAutoRecharge        = "auto_recharge"
	CreditSpend               = "spend"
	CreditMarketplaceSale     = "marketplace_sale"
	CreditMarketplacePurchase = "marketplace_purchase"
	CreditRefund              = "refund"
	CreditAdjustment          = "adjustment"
)

type CreditBalance struct {
	WorkspaceID string     `json:"workspace_id"`
	Balance     int64      `json:"balance"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// CreditEntry is one row of the append-only credit ledger. Delta is positive for grants.
type CreditEntry struct {
	ID           int64     `json:"id"`
	WorkspaceID  string    `json:"workspace_id"`
	Kind         string    `json:"kind"`
	Delta        int64     `json:"delta"`
	BalanceAfter int64     `json:"balance_after"`
	Reference    *string   `json:"reference,omitempty"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
