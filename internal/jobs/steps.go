package jobs

import (
	"context"
	"fmt"
)

// Steps checkpoints the named stages of one job run.
type Steps struct {
	queue Queue
	jobID string
	done  map[string][]byte
}

func newSteps(ctx context.Context, q Queue, jobID string) (*Steps, error) {
	done, err := q.LoadSteps(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints for %s: %w", jobID, err)
	}
	if done == nil {
		done = make(map[string][]byte)
	}
	return &Steps{queue: q, jobID: jobID, done: done}, nil
}

// Step runs fn once per job. When a previous attempt already completed name, the stored
// output is returned and fn is skipped.
func (s *Steps) Step(ctx context.Context, name string, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if out, ok := s.done[name]; ok {
		return out, nil
	}
	out, err := fn(ctx)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", name, err)
	}
	if out == nil {
		out = []byte{}
	}
	if err := s.queue.SaveStep(ctx, s.jobID, name, out); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", name, err)
	}
	s.done[name] = out
	return out, nil
}

// Completed reports whether name finished in this or an earlier attempt.
func (s *Steps) Completed(name string) bool {
	_, ok := s.done[name]
	return ok
}
