package payouts

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultHoldbackDays      = 7
	defaultMinPayoutCents    = 5000
	defaultReleaseInterval   = time.Hour
	defaultPayoutRunTimeout  = 5 * time.Minute
	defaultCommissionRateBps = 2000
)

// Config holds runtime configuration for the payouts module.
type Config struct {
	Holdback        time.Duration
	MinPayoutCents  int64
	ReleaseInterval time.Duration
	RunTimeout      time.Duration
	DefaultRateBps  int
	Currency        string
}

// LoadConfig reads payout configuration from environment variables and applies defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		Holdback:        defaultHoldbackDays * 24 * time.Hour,
		MinPayoutCents:  defaultMinPayoutCents,
		ReleaseInterval: defaultReleaseInterval,
		RunTimeout:      defaultPayoutRunTimeout,
		DefaultRateBps:  defaultCommissionRateBps,
		Currency:        "usd",
	}

	if v, err := readIntEnv("PAYOUT_HOLDBACK_DAYS"); err != nil {
		return Config{}, fmt.Errorf("parse PAYOUT_HOLDBACK_DAYS: %w", err)
	} else if v != nil {
		cfg.Holdback = time.Duration(*v) * 24 * time.Hour
	}

	if v, err := readIntEnv("PAYOUT_MIN_THRESHOLD_CENTS"); err != nil {
		return Config{}, fmt.Errorf("parse PAYOUT_MIN_THRESHOLD_CENTS: %w", err)
	} else if v != nil {
		cfg.MinPayoutCents = int64(*v)
	}

	if v, err := readIntEnv("PAYOUT_RELEASE_INTERVAL_MINUTES"); err != nil {
		return Config{}, fmt.Errorf("parse PAYOUT_RELEASE_INTERVAL_MINUTES: %w", err)
	} else if v != nil {
		cfg.ReleaseInterval = time.Duration(*v) * time.Minute
	}

	if v, err := readIntEnv("PARTNER_DEFAULT_RATE_BPS"); err != nil {
		return Config{}, fmt.Errorf("parse PARTNER_DEFAULT_RATE_BPS: %w", err)
	} else if v != nil {
		cfg.DefaultRateBps = *v
	}

	if v := os.Getenv("PAYOUT_CURRENCY"); v != "" {
		cfg.Currency = v
	}

	if cfg.Holdback <= 0 {
		return Config{}, fmt.Errorf("PAYOUT_HOLDBACK_DAYS must be positive")
	}
	if cfg.MinPayoutCents <= 0 {
		return Config{}, fmt.Errorf("PAYOUT_MIN_THRESHOLD_CENTS must be positive")
	}
	if cfg.ReleaseInterval <= 0 {
		return Config{}, fmt.Errorf("PAYOUT_RELEASE_INTERVAL_MINUTES must be positive")
	}
	if cfg.DefaultRateBps < 0 || cfg.DefaultRateBps > 10000 {
		return Config{}, fmt.Errorf("PARTNER_DEFAULT_RATE_BPS must be within 0..10000")
	}
	return cfg, nil
}

func readIntEnv(name string) (*int, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
