package models

import "time"

var DealStages = []string{"lead", "qualified", "proposal", "negotiation", "won", "lost"}

type Deal struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Title       string     `json:"title" validate:"required"`
	ValueCents  int64      `json:"value_cents" validate:"gte=0"`
	Currency    string     `json:"currency"`
	Stage       string     `json:"stage" validate:"omitempty,oneof=lead qualified proposal negotiation won lost"`
	LeadID      *string    `json:"lead_id,omitempty"`
	ContactID   *string    `json:"contact_id,omitempty"`
	CompanyID   *string    `json:"company_id,omitempty"`
	OwnerID     *string    `json:"owner_id,omitempty"`
	CloseDate   *time.Time `json:"close_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// DealColumn is one stage column of the deals board.
type DealColumn struct {
	Stage      string `json:"stage"`
	TotalCents int64  `json:"total_cents"`
	Deals      []Deal `json:"deals"`
}

func ValidDealStage(s string) bool {
	for _, st := range DealStages {
		if st == s {
			return true
		}
	}
	return false
}
