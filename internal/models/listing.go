package models

import "time"

const (
	ListingActive    = "active"
	ListingSold      = "sold"
	ListingWithdrawn = "withdrawn"
)

type Listing struct {
	ID                string     `json:"id"`
	SellerWorkspaceID string     `json:"seller_workspace_id"`
	LeadID            string     `json:"lead_id" validate:"required"`
	PriceCredits      int64      `json:"price_credits" validate:"gt=0"`
	Status            string     `json:"status"`
	Title             string     `json:"title"`
	Company           string     `json:"company"`
	Seniority         string     `json:"seniority"`
	Country           string     `json:"country"`
	IntentScore       int        `json:"intent_score"`
	BuyerWorkspaceID  *string    `json:"buyer_workspace_id,omitempty"`
	SoldAt            *time.Time `json:"sold_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Purchase is the outcome of buying a marketplace listing.
type Purchase struct {
	ListingID     string `json:"listing_id"`
	LeadID        string `json:"lead_id"`
	PriceCredits  int64  `json:"price_credits"`
	SellerCredits int64  `json:"seller_credits"`
	BuyerBalance  int64  `json:"buyer_balance"`
}
