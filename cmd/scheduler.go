package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const scheduledTaskTimeout = time.Minute

// startScheduler registers the periodic jobs that feed the queue and pays partners
// every Monday at 06:00 UTC. The returned cron must be stopped on shutdown.
func (app *application) startScheduler(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	task := func(name string, timeout time.Duration, fn func(ctx context.Context) error) func() {
		return func() {
			runCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			if err := fn(runCtx); err != nil {
				app.logger.WithField("task", name).Errorf("scheduled task failed: %v", err)
				return
			}
			app.logger.WithFields(logrus.Fields{"task": name, "duration": time.Since(start).String()}).Debug("scheduled task done")
		}
	}

	specs := []struct {
		schedule string
		fn       func()
	}{
		{"@hourly", task("segment_pulls", scheduledTaskTimeout, func(ctx context.Context) error {
			n, err := app.segmentService.EnqueueScheduledPulls(ctx)
			if n > 0 {
				app.logger.Infof("scheduler: queued %d segment pulls", n)
			}
			return err
		})},
		{"*/15 * * * *", task("auto_recharge", scheduledTaskTimeout, func(ctx context.Context) error {
			n, err := app.creditService.EnqueueDueAutoRecharges(ctx)
			if n > 0 {
				app.logger.Infof("scheduler: queued %d auto-recharges", n)
			}
			return err
		})},
		{"0 6 * * 1", task("weekly_payouts", app.payoutCfg.RunTimeout, func(ctx context.Context) error {
			_, err := app.payoutService.RunWeeklyPayouts(ctx, time.Now())
			return err
		})},
	}
	for _, s := range specs {
		if _, err := c.AddFunc(s.schedule, s.fn); err != nil {
			return nil, err
		}
	}

	c.Start()
	return c, nil
}
