package models

type HealthReport struct {
	Status          string            `json:"status"`
	Checks          map[string]string `json:"checks"`
	QueueDepth      int64             `json:"queue_depth"`
	DeadLetters     int64             `json:"dead_letters"`
	WebhookFailures int               `json:"webhook_failures_24h"`
}
