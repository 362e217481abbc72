package models

import "time"

const (
	LeadSourceAPI         = "api"
	LeadSourceManual      = "manual"
	LeadSourceBulkUpload  = "bulk_upload"
	LeadSourceSegmentPull = "segment_pull"
	LeadSourceMarketplace = "marketplace"
)

const (
	LeadStatusNew          = "new"
	LeadStatusContacted    = "contacted"
	LeadStatusQualified    = "qualified"
	LeadStatusDisqualified = "disqualified"
	LeadStatusConverted    = "converted"
)

type Lead struct {
	ID             string     `json:"id"`
	WorkspaceID    string     `json:"workspace_id"`
	Email          string     `json:"email" validate:"required,email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Title          string     `json:"title"`
	Seniority      string     `json:"seniority"`
	Company        string     `json:"company"`
	CompanyDomain  string     `json:"company_domain"`
	CompanySize    string     `json:"company_size"`
	Phone          string     `json:"phone"`
	LinkedInURL    string     `json:"linkedin_url"`
	City           string     `json:"city"`
	Country        string     `json:"country"`
	Source         string     `json:"source"`
	Status         string     `json:"status"`
	EmailStatus    string     `json:"email_status"`
	OwnerAgentID   *string    `json:"owner_agent_id,omitempty"`
	IntentScore    int        `json:"intent_score"`
	FreshnessScore int        `json:"freshness_score"`
	Tags           []string   `json:"tags"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// LeadFilter narrows lead listings. Zero values are ignored.
type LeadFilter struct {
	Query          string
	Status         string
	OwnerAgentID   string
	MinIntentScore int
	Limit          int
	Offset         int
}

// DedupEvent records a lead that was skipped because its email already existed.
type DedupEvent struct {
	WorkspaceID string    `json:"workspace_id"`
	Email       string    `json:"email"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

type DedupStat struct {
	Source     string `json:"source"`
	Duplicates int    `json:"duplicates"`
}

func ValidLeadStatus(s string) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusDisqualified, LeadStatusConverted:
		return true
	}
	return false
}
