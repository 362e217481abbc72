package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory is a per-process token bucket limiter. Entries idle longer than the TTL are
// dropped by Sweep, so the map does not grow with every caller ever seen.
type Memory struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

func NewMemory(requestsPerSecond float64, burst int, idleTTL time.Duration) *Memory {
	return &Memory{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

func (m *Memory) Backend() string { return "memory" }

func (m *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	v, ok := m.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(m.rate, m.burst)}
		m.visitors[key] = v
	}
	v.lastSeen = now
	m.mu.Unlock()

	if v.limiter.AllowN(now, 1) {
		return true, 0, nil
	}
	r := v.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return false, delay, nil
}

// Sweep removes visitors not seen since now-idleTTL and returns how many were dropped.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, v := range m.visitors {
		if now.Sub(v.lastSeen) > m.idleTTL {
			delete(m.visitors, key)
			removed++
		}
	}
	return removed
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visitors)
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (m *Memory) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				m.Sweep(t)
			}
		}
	}()
}
