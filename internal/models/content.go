package models

import "time"

var ContentKinds = []string{"cold_email", "linkedin_message", "follow_up", "landing_headline"}

type ContentDraft struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Kind        string    `json:"kind"`
	Brief       string    `json:"brief"`
	LeadID      *string   `json:"lead_id,omitempty"`
	CampaignID  *string   `json:"campaign_id,omitempty"`
	Body        string    `json:"body"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type ContentRequest struct {
	Kind       string  `json:"kind" validate:"required,oneof=cold_email linkedin_message follow_up landing_headline"`
	Brief      string  `json:"brief" validate:"required,max=2000"`
	Tone       string  `json:"tone" validate:"omitempty,oneof=formal friendly direct"`
	LeadID     *string `json:"lead_id,omitempty"`
	CampaignID *string `json:"campaign_id,omitempty"`
}
