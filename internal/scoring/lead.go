package scoring

import (
	"strings"
	"time"

	"leadgenBack/internal/models"
)

// NormalizeEmailStatus maps provider verification labels onto valid, bounced or unknown.
func NormalizeEmailStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "valid", "verified", "deliverable":
		return EmailStatusValid
	case "bounced", "invalid", "undeliverable":
		return EmailStatusBounced
	}
	return EmailStatusUnknown
}

// Apply normalizes the scoring inputs of a lead and stores both scores on it. A zero
// CreatedAt is treated as now.
func Apply(lead *models.Lead, now time.Time) {
	lead.Email = strings.ToLower(strings.TrimSpace(lead.Email))
	lead.CompanyDomain = NormalizeDomain(lead.CompanyDomain)
	lead.Seniority = ResolveSeniority(lead.Seniority, lead.Title)
	lead.EmailStatus = NormalizeEmailStatus(lead.EmailStatus)

	lead.IntentScore = CalculateIntentScore(IntentInput{
		Seniority:     lead.Seniority,
		Title:         lead.Title,
		CompanySize:   lead.CompanySize,
		Email:         lead.Email,
		CompanyDomain: lead.CompanyDomain,
		Phone:         lead.Phone,
		Completeness: Completeness(lead.FirstName, lead.LastName, lead.Title, lead.Company, lead.CompanyDomain,
			lead.Email, lead.Phone, lead.LinkedInURL, lead.City, lead.Country),
	})

	created := lead.CreatedAt
	if created.IsZero() {
		created = now
	}
	lead.FreshnessScore = CalculateFreshnessScore(FreshnessInput{
		CreatedAt:   created,
		VerifiedAt:  lead.VerifiedAt,
		EmailStatus: lead.EmailStatus,
	}, now)
}
