package models

import "time"

type Agent struct {
	ID           string     `json:"id"`
	WorkspaceID  string     `json:"workspace_id"`
	Name         string     `json:"name" validate:"required"`
	Email        string     `json:"email" validate:"required,email"`
	Active       bool       `json:"active"`
	MaxOpenLeads int        `json:"max_open_leads" validate:"gte=0"`
	OpenLeads    int        `json:"open_leads"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}
