package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const stepsTTL = 7 * 24 * time.Hour

// Queue stores pending, delayed and dead jobs plus step checkpoints.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	EnqueueAt(ctx context.Context, job Job, at time.Time) error
	// Pop blocks up to timeout and returns nil when nothing arrived.
	Pop(ctx context.Context, timeout time.Duration) (*Job, error)
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	DeadLetter(ctx context.Context, dead DeadJob) error
	Depth(ctx context.Context) (int64, error)
	DeadLetters(ctx context.Context) (int64, error)

	LoadSteps(ctx context.Context, jobID string) (map[string][]byte, error)
	SaveStep(ctx context.Context, jobID, name string, output []byte) error
	ClearSteps(ctx context.Context, jobID string) error
}

// RedisQueue keeps ready jobs in a list consumed with BRPOP, delayed retries in a sorted
// set scored by due time, and checkpoints in one hash per job.
type RedisQueue struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisQueue(rdb *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "jobs"
	}
	return &RedisQueue{rdb: rdb, prefix: prefix}
}

func (q *RedisQueue) readyKey() string   { return q.prefix + ":ready" }
func (q *RedisQueue) delayedKey() string { return q.prefix + ":delayed" }
func (q *RedisQueue) deadKey() string    { return q.prefix + ":dead" }
func (q *RedisQueue) stepsKey(id string) string {
	return q.prefix + ":steps:" + id
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.readyKey(), data).Err()
}

func (q *RedisQueue) EnqueueAt(ctx context.Context, job Job, at time.Time) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(at.UnixMilli()), Member: data}).Err()
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.readyKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("jobs: unexpected BRPOP reply %v", res)
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("jobs: decode job: %w", err)
	}
	return &job, nil
}

// PromoteDue moves delayed jobs whose time has come to the ready list. ZREM decides the
// winner when several instances promote at once.
func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := q.rdb.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: 100,
	}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, m := range members {
		removed, err := q.rdb.ZRem(ctx, q.delayedKey(), m).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.readyKey(), m).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (q *RedisQueue) DeadLetter(ctx context.Context, dead DeadJob) error {
	data, err := json.Marshal(dead)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.deadKey(), data).Err()
}

// Depth counts ready and delayed jobs.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	var ready, delayed *redis.IntCmd
	_, err := q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		ready = p.LLen(ctx, q.readyKey())
		delayed = p.ZCard(ctx, q.delayedKey())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return ready.Val() + delayed.Val(), nil
}

func (q *RedisQueue) DeadLetters(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.deadKey()).Result()
}

func (q *RedisQueue) LoadSteps(ctx context.Context, jobID string) (map[string][]byte, error) {
	raw, err := q.rdb.HGetAll(ctx, q.stepsKey(jobID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(raw))
	for k, v := range raw {
		out[k] = []byte(v)
	}
	return out, nil
}

func (q *RedisQueue) SaveStep(ctx context.Context, jobID, name string, output []byte) error {
	_, err := q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, q.stepsKey(jobID), name, output)
		p.Expire(ctx, q.stepsKey(jobID), stepsTTL)
		return nil
	})
	return err
}

func (q *RedisQueue) ClearSteps(ctx context.Context, jobID string) error {
	return q.rdb.Del(ctx, q.stepsKey(jobID)).Err()
}

// Ping reports whether Redis answers.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}
