package scoring

import (
	"strings"
	"time"
)

const (
	EmailStatusValid   = "valid"
	EmailStatusUnknown = "unknown"
	EmailStatusBounced = "bounced"

	day = 24 * time.Hour

	unverifiedPenalty = 10
	bouncedPenalty    = 30
)

var freshnessBands = []struct {
	maxAge time.Duration
	score  int
}{
	{7 * day, 100},
	{30 * day, 90},
	{90 * day, 75},
	{180 * day, 55},
	{365 * day, 35},
}

// FreshnessInput describes when a lead was last confirmed.
type FreshnessInput struct {
	CreatedAt   time.Time
	VerifiedAt  *time.Time
	EmailStatus string
}

// CalculateFreshnessScore scores the age of the last verification (or creation) at now.
func CalculateFreshnessScore(in FreshnessInput, now time.Time) int {
	ref := in.CreatedAt
	if in.VerifiedAt != nil && !in.VerifiedAt.IsZero() {
		ref = *in.VerifiedAt
	}
	age := now.Sub(ref)
	if age < 0 {
		age = 0
	}

	score := 15
	for _, b := range freshnessBands {
		if age <= b.maxAge {
			score = b.score
			break
		}
	}

	switch strings.ToLower(strings.TrimSpace(in.EmailStatus)) {
	case EmailStatusValid:
	case EmailStatusBounced:
		score -= bouncedPenalty
	default:
		score -= unverifiedPenalty
	}
	return clamp(score)
}
