package jobs

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgenBack/internal/logging"
)

func newTestRunner(q Queue) *Runner {
	r := NewRunner(q, Config{Workers: 1, MaxAttempts: 3, Backoff: 10 * time.Second}, logging.Discard{})
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }
	return r
}

func TestRunnerSuccessClearsCheckpoints(t *testing.T) {
	q := newMemQueue()
	r := newTestRunner(q)
	r.Register("demo", func(ctx context.Context, job Job, steps *Steps) error {
		_, err := steps.Step(ctx, "one", func(context.Context) ([]byte, error) { return []byte("ok"), nil })
		return err
	})

	id, err := r.Enqueue(context.Background(), "demo", map[string]string{"k": "v"})
	require.NoError(t, err)
	job, _ := q.Pop(context.Background(), 0)
	require.Equal(t, id, job.ID)

	r.Process(context.Background(), *job)
	assert.Empty(t, q.steps)
	assert.Empty(t, q.dead)
	assert.Empty(t, q.delayed)
}

func TestRunnerRetriesWithLinearBackoffThenDeadLetters(t *testing.T) {
	q := newMemQueue()
	r := newTestRunner(q)
	calls := 0
	var deadErr error
	r.Register("flaky", func(ctx context.Context, job Job, steps *Steps) error {
		calls++
		return errors.New("boom")
	})
	r.OnDead("flaky", func(_ context.Context, _ Job, err error) { deadErr = err })

	job, err := NewJob("flaky", nil, 3)
	require.NoError(t, err)

	r.Process(context.Background(), job)
	require.Len(t, q.delayed, 1)
	assert.Equal(t, 1, q.delayed[0].job.Attempt)
	assert.Equal(t, r.now().Add(10*time.Second), q.delayed[0].at)

	next := q.delayed[0].job
	q.delayed = nil
	r.Process(context.Background(), next)
	require.Len(t, q.delayed, 1)
	assert.Equal(t, r.now().Add(20*time.Second), q.delayed[0].at)

	last := q.delayed[0].job
	q.delayed = nil
	r.Process(context.Background(), last)
	assert.Empty(t, q.delayed)
	require.Len(t, q.dead, 1)
	assert.Equal(t, "boom", q.dead[0].Error)
	assert.EqualError(t, deadErr, "boom")
	assert.Equal(t, 3, calls)
}

func TestRunnerPermanentErrorSkipsRetries(t *testing.T) {
	q := newMemQueue()
	r := newTestRunner(q)
	r.Register("bad", func(ctx context.Context, job Job, steps *Steps) error {
		var payload struct{ N int }
		return job.Decode(&payload)
	})

	job := Job{ID: "j1", Type: "bad", Payload: []byte(`{"N":"nope"}`), MaxAttempts: 3}
	r.Process(context.Background(), job)
	assert.Empty(t, q.delayed)
	require.Len(t, q.dead, 1)
}

func TestRunnerUnknownTypeAndPanic(t *testing.T) {
	q := newMemQueue()
	r := newTestRunner(q)
	r.Register("panics", func(context.Context, Job, *Steps) error { panic("kaboom") })

	r.Process(context.Background(), Job{ID: "a", Type: "missing", MaxAttempts: 3})
	require.Len(t, q.dead, 1)

	r.Process(context.Background(), Job{ID: "b", Type: "panics", MaxAttempts: 3})
	require.Len(t, q.delayed, 1)
	assert.Contains(t, q.delayed[0].job.LastError, "kaboom")
}

func TestStepsReplayCompletedWork(t *testing.T) {
	q := newMemQueue()
	r := newTestRunner(q)
	runs := map[string]int{}
	fail := true
	r.Register("multi", func(ctx context.Context, job Job, steps *Steps) error {
		for _, name := range []string{"a", "b"} {
			n := name
			if _, err := steps.Step(ctx, n, func(context.Context) ([]byte, error) {
				runs[n]++
				if n == "b" && fail {
					return nil, errors.New("transient")
				}
				return []byte(n), nil
			}); err != nil {
				return err
			}
		}
		return nil
	})

	job, _ := NewJob("multi", nil, 3)
	r.Process(context.Background(), job)
	require.Len(t, q.delayed, 1)
	assert.Equal(t, []byte("a"), q.steps[job.ID]["a"])

	fail = false
	retry := q.delayed[0].job
	q.delayed = nil
	r.Process(context.Background(), retry)
	assert.Equal(t, 1, runs["a"])
	assert.Equal(t, 2, runs["b"])
	assert.Empty(t, q.steps)
}

func TestRunnerRunDrainsQueue(t *testing.T) {
	q := newMemQueue()
	r := NewRunner(q, Config{Workers: 2, PopTimeout: 5 * time.Millisecond, PromoteInterval: 5 * time.Millisecond}, nil)
	done := make(chan string, 4)
	r.Register("echo", func(_ context.Context, job Job, _ *Steps) error {
		done <- job.ID
		return nil
	})
	for i := 0; i < 4; i++ {
		_, err := r.Enqueue(context.Background(), "echo", i)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(finished)
	}()
	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job was not processed")
		}
	}
	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunnerRequeuesJobInterruptedByShutdown(t *testing.T) {
	mem := newMemQueue()
	r := newTestRunner(cancelAwareQueue{mem})
	ctx, cancel := context.WithCancel(context.Background())
	r.Register("slow", func(ctx context.Context, _ Job, _ *Steps) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	job, err := NewJob("slow", nil, 1)
	require.NoError(t, err)
	r.Process(ctx, job)

	require.Len(t, mem.ready, 1)
	assert.Equal(t, job.ID, mem.ready[0].ID)
	assert.Equal(t, 0, mem.ready[0].Attempt)
	assert.Empty(t, mem.dead)
}

func TestRunnerDeadLettersAfterCancellation(t *testing.T) {
	mem := newMemQueue()
	r := newTestRunner(cancelAwareQueue{mem})
	ctx, cancel := context.WithCancel(context.Background())
	r.Register("broken", func(context.Context, Job, *Steps) error {
		cancel()
		return Permanent(errors.New("bad payload"))
	})
	r.Register("done", func(context.Context, Job, *Steps) error {
		cancel()
		return nil
	})

	bad, _ := NewJob("broken", nil, 3)
	r.Process(ctx, bad)
	require.Len(t, mem.dead, 1)
	assert.Equal(t, "bad payload", mem.dead[0].Error)

	mem.steps["ok"] = map[string][]byte{"a": []byte("x")}
	r.Process(ctx, Job{ID: "ok", Type: "done", MaxAttempts: 3})
	assert.Empty(t, mem.steps)
}

func TestRedisQueue(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	q := NewRedisQueue(rdb, "test-jobs-"+time.Now().Format("150405.000000"))
	defer rdb.Del(ctx, q.readyKey(), q.delayedKey(), q.deadKey())

	job, _ := NewJob("demo", map[string]int{"n": 1}, 3)
	require.NoError(t, q.EnqueueAt(ctx, job, time.Now().Add(-time.Second)))
	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	moved, err := q.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)

	empty, err := q.Pop(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, empty)

	require.NoError(t, q.SaveStep(ctx, job.ID, "s1", []byte("out")))
	steps, err := q.LoadSteps(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("out"), steps["s1"])
	require.NoError(t, q.ClearSteps(ctx, job.ID))

	require.NoError(t, q.DeadLetter(ctx, DeadJob{Job: job, Error: "x"}))
	dead, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}
