package models

import "time"

const (
	CampaignDraft     = "draft"
	CampaignActive    = "active"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
)

type Campaign struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Name        string     `json:"name" validate:"required"`
	Channel     string     `json:"channel" validate:"omitempty,oneof=email linkedin phone ads"`
	Status      string     `json:"status" validate:"omitempty,oneof=draft active paused completed"`
	BudgetCents int64      `json:"budget_cents" validate:"gte=0"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}
