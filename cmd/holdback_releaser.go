package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"leadgenBack/internal/payouts"
)

const holdbackReleaseTimeout = 30 * time.Second

// startHoldbackReleaser moves commissions past their holdback to payable, once at
// startup and then every interval.
func startHoldbackReleaser(ctx context.Context, svc *payouts.Service, interval time.Duration, logger *logrus.Logger) {
	if svc == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		run := func() {
			runCtx, cancel := context.WithTimeout(ctx, holdbackReleaseTimeout)
			defer cancel()

			released, err := svc.ReleaseHoldback(runCtx, time.Now())
			if err != nil {
				logger.Errorf("holdback releaser: failed to release commissions: %v", err)
				return
			}
			if released > 0 {
				logger.Infof("holdback releaser: %d commissions now payable", released)
			}
		}

		run()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
