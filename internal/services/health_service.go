package services

import (
	"context"
	"time"

	"leadgenBack/internal/models"
)

const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type QueueStats interface {
	Depth(ctx context.Context) (int64, error)
	DeadLetters(ctx context.Context) (int64, error)
}

type WebhookFailures interface {
	CountFailedSince(ctx context.Context, since time.Time) (int, error)
}

// PingFunc adapts a ping function, such as a Redis client's, to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type HealthService struct {
	DB       Pinger
	Redis    Pinger
	Queue    QueueStats
	Webhooks WebhookFailures
	Timeout  time.Duration

	now func() time.Time
}

// Report checks every dependency. Any failing check turns the status degraded; the
// report itself never fails.
func (s *HealthService) Report(ctx context.Context) models.HealthReport {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := models.HealthReport{Status: HealthOK, Checks: map[string]string{}}
	check := func(name string, err error) {
		if err != nil {
			report.Checks[name] = err.Error()
			report.Status = HealthDegraded
			return
		}
		report.Checks[name] = HealthOK
	}

	if s.DB != nil {
		check("database", s.DB.PingContext(ctx))
	}
	if s.Redis != nil {
		check("redis", s.Redis.PingContext(ctx))
	}
	if s.Queue != nil {
		depth, err := s.Queue.Depth(ctx)
		check("job_queue", err)
		report.QueueDepth = depth
		dead, err := s.Queue.DeadLetters(ctx)
		check("dead_letters", err)
		report.DeadLetters = dead
	}
	if s.Webhooks != nil {
		failed, err := s.Webhooks.CountFailedSince(ctx, s.clock().Add(-24*time.Hour))
		check("webhooks", err)
		report.WebhookFailures = failed
	}
	return report
}

func (s *HealthService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
