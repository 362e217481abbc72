package jobs

import (
	"context"
	"sync"
	"time"
)

type delayedJob struct {
	job Job
	at  time.Time
}

// memQueue is an in-process Queue for runner and handler tests.
type memQueue struct {
	mu      sync.Mutex
	ready   []Job
	delayed []delayedJob
	dead    []DeadJob
	steps   map[string]map[string][]byte
	saves   int
}

func newMemQueue() *memQueue {
	return &memQueue{steps: map[string]map[string][]byte{}}
}

func (q *memQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ready = append(q.ready, job)
	return nil
}

func (q *memQueue) EnqueueAt(_ context.Context, job Job, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, delayedJob{job: job, at: at})
	return nil
}

func (q *memQueue) Pop(_ context.Context, timeout time.Duration) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		q.mu.Unlock()
		time.Sleep(timeout)
		q.mu.Lock()
		return nil, nil
	}
	job := q.ready[0]
	q.ready = q.ready[1:]
	return &job, nil
}

func (q *memQueue) PromoteDue(_ context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.delayed[:0]
	moved := 0
	for _, d := range q.delayed {
		if !d.at.After(now) {
			q.ready = append(q.ready, d.job)
			moved++
			continue
		}
		kept = append(kept, d)
	}
	q.delayed = kept
	return moved, nil
}

func (q *memQueue) DeadLetter(_ context.Context, dead DeadJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, dead)
	return nil
}

func (q *memQueue) Depth(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.ready) + len(q.delayed)), nil
}

func (q *memQueue) DeadLetters(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.dead)), nil
}

func (q *memQueue) LoadSteps(_ context.Context, jobID string) (map[string][]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := map[string][]byte{}
	for k, v := range q.steps[jobID] {
		out[k] = v
	}
	return out, nil
}

func (q *memQueue) SaveStep(_ context.Context, jobID, name string, output []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.steps[jobID] == nil {
		q.steps[jobID] = map[string][]byte{}
	}
	q.steps[jobID][name] = output
	q.saves++
	return nil
}

func (q *memQueue) ClearSteps(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.steps, jobID)
	return nil
}

// cancelAwareQueue fails writes made with a cancelled context, the way go-redis does.
type cancelAwareQueue struct {
	*memQueue
}

func (q cancelAwareQueue) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.memQueue.Enqueue(ctx, job)
}

func (q cancelAwareQueue) EnqueueAt(ctx context.Context, job Job, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.memQueue.EnqueueAt(ctx, job, at)
}

func (q cancelAwareQueue) DeadLetter(ctx context.Context, dead DeadJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.memQueue.DeadLetter(ctx, dead)
}

func (q cancelAwareQueue) ClearSteps(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.memQueue.ClearSteps(ctx, jobID)
}
