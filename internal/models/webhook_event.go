package models

import "time"

const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
	WebhookFailed    = "failed"
)

type WebhookEvent struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Error       *string   `json:"error,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}
