package models

import "time"

// Segment is a saved enrichment query that is pulled into the workspace periodically.
type Segment struct {
	ID            string     `json:"id"`
	WorkspaceID   string     `json:"workspace_id"`
	Name          string     `json:"name" validate:"required"`
	Titles        []string   `json:"titles"`
	Industries    []string   `json:"industries"`
	Locations     []string   `json:"locations"`
	CompanySizes  []string   `json:"company_sizes"`
	Active        bool       `json:"active"`
	Cursor        *string    `json:"cursor,omitempty"`
	TotalImported int        `json:"total_imported"`
	LastPulledAt  *time.Time `json:"last_pulled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}
