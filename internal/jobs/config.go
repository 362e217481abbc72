package jobs

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultWorkers         = 4
	defaultMaxAttempts     = 3
	defaultBackoff         = 30 * time.Second
	defaultPopTimeout      = 5 * time.Second
	defaultPromoteInterval = time.Second
	defaultJobTimeout      = 10 * time.Minute
	defaultSegmentMaxPages = 5
	defaultSegmentPageSize = 100
)

// Config holds runtime knobs for the job runner and its handlers.
type Config struct {
	Workers         int
	MaxAttempts     int
	Backoff         time.Duration
	PopTimeout      time.Duration
	PromoteInterval time.Duration
	JobTimeout      time.Duration
	SegmentMaxPages int
	SegmentPageSize int
}

// LoadConfig reads job configuration from environment variables and applies defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		Workers:         defaultWorkers,
		MaxAttempts:     defaultMaxAttempts,
		Backoff:         defaultBackoff,
		PopTimeout:      defaultPopTimeout,
		PromoteInterval: defaultPromoteInterval,
		JobTimeout:      defaultJobTimeout,
		SegmentMaxPages: defaultSegmentMaxPages,
		SegmentPageSize: defaultSegmentPageSize,
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"JOBS_WORKERS", &cfg.Workers},
		{"JOBS_MAX_ATTEMPTS", &cfg.MaxAttempts},
		{"SEGMENT_PULL_MAX_PAGES", &cfg.SegmentMaxPages},
		{"SEGMENT_PULL_PAGE_SIZE", &cfg.SegmentPageSize},
	}
	for _, it := range ints {
		v, err := readIntEnv(it.env)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", it.env, err)
		}
		if v != nil {
			*it.dst = *v
		}
	}

	if v, err := readIntEnv("JOBS_BACKOFF_SECONDS"); err != nil {
		return Config{}, fmt.Errorf("parse JOBS_BACKOFF_SECONDS: %w", err)
	} else if v != nil {
		cfg.Backoff = time.Duration(*v) * time.Second
	}
	if v, err := readIntEnv("JOBS_TIMEOUT_SECONDS"); err != nil {
		return Config{}, fmt.Errorf("parse JOBS_TIMEOUT_SECONDS: %w", err)
	} else if v != nil {
		cfg.JobTimeout = time.Duration(*v) * time.Second
	}

	if cfg.Workers <= 0 {
		return Config{}, fmt.Errorf("JOBS_WORKERS must be positive")
	}
	if cfg.MaxAttempts <= 0 {
		return Config{}, fmt.Errorf("JOBS_MAX_ATTEMPTS must be positive")
	}
	return cfg, nil
}

func readIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
