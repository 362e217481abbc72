package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter shared by every instance pointed at the same server.
type Redis struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedis allows limit requests per key in each window.
func NewRedis(client *redis.Client, limit int64, window time.Duration) *Redis {
	return &Redis{client: client, limit: limit, window: window, prefix: "ratelimit:", now: time.Now}
}

func (r *Redis) Backend() string { return "redis" }

func (r *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := r.now()
	windowStart := now.Truncate(r.window)
	redisKey := fmt.Sprintf("%s%s:%d", r.prefix, key, windowStart.Unix())

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, r.window+time.Second)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("incr %s: %w", redisKey, err)
	}
	if incr.Val() > r.limit {
		return false, windowStart.Add(r.window).Sub(now), nil
	}
	return true, 0, nil
}
