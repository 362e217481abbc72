package models

import "time"

type Contact struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	CompanyID   *string    `json:"company_id,omitempty"`
	FirstName   string     `json:"first_name" validate:"required"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email" validate:"omitempty,email"`
	Phone       string     `json:"phone"`
	Title       string     `json:"title"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type Company struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Name        string     `json:"name" validate:"required"`
	Domain      string     `json:"domain" validate:"omitempty,fqdn"`
	Industry    string     `json:"industry"`
	SizeBand    string     `json:"size_band"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}
